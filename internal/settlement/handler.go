package settlement

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/splitledger/internal/validate"
	"github.com/fkhayef/splitledger/pkg/middleware"
	"github.com/fkhayef/splitledger/pkg/response"
)

// Handler handles HTTP requests for settlement operations
type Handler struct {
	service *Service
}

// NewHandler creates a new settlement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for settlement endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Delete("/{id}", h.Delete)

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case validate.IsValidation(err):
		response.ValidationFailed(w, err)
	case errors.Is(err, ErrSettlementNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrAlreadySettled):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNotParty), errors.Is(err, ErrNotCreator), errors.Is(err, ErrNotGroupMember):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// Create handles POST /settlements
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req CreateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	s, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err, "Failed to create settlement")
		return
	}

	response.JSON(w, http.StatusCreated, s.ToResponse())
}

// List handles GET /settlements
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	page, perPage := response.Page(r)

	settlements, total, err := h.service.ListByUserID(r.Context(), userID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list settlements")
		return
	}

	out := make([]*SettlementResponse, len(settlements))
	for i, s := range settlements {
		out[i] = s.ToResponse()
	}

	response.JSONWithMeta(w, http.StatusOK, out, response.NewMeta(page, perPage, total))
}

// GetByID handles GET /settlements/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid settlement ID")
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	s, err := h.service.GetByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, err, "Failed to get settlement")
		return
	}

	response.JSON(w, http.StatusOK, s.ToResponse())
}

// Delete handles DELETE /settlements/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid settlement ID")
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		writeError(w, err, "Failed to delete settlement")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Settlement deleted successfully"})
}
