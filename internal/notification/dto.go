package notification

import "time"

// NotificationResponse represents the response for a notification
type NotificationResponse struct {
	ID                int64       `json:"id"`
	Message           string      `json:"message"`
	IsRead            bool        `json:"is_read"`
	RelatedEntityType *EntityType `json:"related_entity_type,omitempty"`
	RelatedEntityID   *int64      `json:"related_entity_id,omitempty"`
	CreatedAt         string      `json:"created_at"`
}

func (n *Notification) ToResponse() *NotificationResponse {
	return &NotificationResponse{
		ID:                n.ID,
		Message:           n.Message,
		IsRead:            n.IsRead,
		RelatedEntityType: n.RelatedEntityType,
		RelatedEntityID:   n.RelatedEntityID,
		CreatedAt:         n.CreatedAt.UTC().Format(time.RFC3339),
	}
}
