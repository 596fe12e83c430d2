package notification

import "time"

// Notification represents a notification in the system
type Notification struct {
	ID                int64       `json:"id"`
	RecipientID       int64       `json:"recipient_id"`
	Message           string      `json:"message"`
	IsRead            bool        `json:"is_read"`
	RelatedEntityType *EntityType `json:"related_entity_type,omitempty"`
	RelatedEntityID   *int64      `json:"related_entity_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// EntityType names what a notification is about.
type EntityType string

const (
	EntityExpense    EntityType = "EXPENSE"
	EntitySettlement EntityType = "SETTLEMENT"
	EntityGroup      EntityType = "GROUP"
)

// Action is what happened to the entity.
type Action string

const (
	ActionAdded   Action = "added"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)
