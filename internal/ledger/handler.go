package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/splitledger/internal/validate"
	"github.com/fkhayef/splitledger/pkg/middleware"
	"github.com/fkhayef/splitledger/pkg/response"
)

// Reader is the part of View the handler serves.
type Reader interface {
	GroupBalances(ctx context.Context, viewerID, groupID int64) (*GroupBalances, error)
	FriendBalance(ctx context.Context, viewerID, friendID int64) (*FriendBalance, error)
	GlobalBalances(ctx context.Context, viewerID int64) (*GlobalBalances, error)
}

// Handler handles HTTP requests for computed balances
type Handler struct {
	view Reader
}

// NewHandler creates a new balance handler
func NewHandler(view Reader) *Handler {
	return &Handler{view: view}
}

// Routes returns the router for balance endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Global)
	r.Get("/groups/{groupId}", h.Group)
	r.Get("/friends/{userId}", h.Friend)

	return r
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case validate.IsValidation(err):
		response.ValidationFailed(w, err)
	case errors.Is(err, ErrNotGroupMember):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrSelfScope):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}

// Global handles GET /balances
// @Summary      Get my balances with everyone
// @Tags         balances
// @Produce      json
// @Success      200 {object} response.APIResponse{data=GlobalBalances}
// @Router       /balances [get]
func (h *Handler) Global(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	out, err := h.view.GlobalBalances(r.Context(), userID)
	if err != nil {
		writeError(w, err, "Failed to compute balances")
		return
	}

	response.JSON(w, http.StatusOK, out)
}

// Group handles GET /balances/groups/{groupId}
// @Summary      Get a group's balance sheet
// @Description  My balances inside the group, every member's net position and suggested transfers
// @Tags         balances
// @Produce      json
// @Param        groupId path int true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupBalances}
// @Failure      403 {object} response.APIResponse
// @Router       /balances/groups/{groupId} [get]
func (h *Handler) Group(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	out, err := h.view.GroupBalances(r.Context(), userID, groupID)
	if err != nil {
		writeError(w, err, "Failed to compute group balances")
		return
	}

	response.JSON(w, http.StatusOK, out)
}

// Friend handles GET /balances/friends/{userId}
// @Summary      Get my balance with one friend across all groups
// @Tags         balances
// @Produce      json
// @Param        userId path int true "Friend's user ID"
// @Success      200 {object} response.APIResponse{data=FriendBalance}
// @Failure      400 {object} response.APIResponse
// @Router       /balances/friends/{userId} [get]
func (h *Handler) Friend(w http.ResponseWriter, r *http.Request) {
	friendID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	userID, _ := middleware.GetUserID(r.Context())

	out, err := h.view.FriendBalance(r.Context(), userID, friendID)
	if err != nil {
		writeError(w, err, "Failed to compute friend balance")
		return
	}

	response.JSON(w, http.StatusOK, out)
}
