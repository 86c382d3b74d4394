package card

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/transport"
)

type ServiceAPI interface {
	Save(ctx context.Context, userID string, dto SaveCardDTO) (*SavedCard, bool, error)
	List(ctx context.Context, userID string) ([]*SavedCard, error)
	SetDefault(ctx context.Context, userID, token string) (*SavedCard, error)
	UpdateHolderName(ctx context.Context, userID, token string, dto UpdateCardDTO) (*SavedCard, error)
	Delete(ctx context.Context, userID, token string) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := errors.UserIDFromContext(r.Context())
	if userID == "" {
		h.HandleError(w, errors.ErrAuthenticationFailed)
		return "", false
	}
	return userID, true
}

// List handles GET /cards
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	cards, err := h.Service.List(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Cards: cards})
}

// Save handles POST /cards
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req SaveCardDTO
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	saved, existed, err := h.Service.Save(r.Context(), userID, req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	h.WriteJSON(w, status, SaveCardResponse{SavedCard: saved, AlreadySaved: existed})
}

// Update handles PATCH /cards/{token}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req UpdateCardDTO
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	saved, err := h.Service.UpdateHolderName(r.Context(), userID, chi.URLParam(r, "token"), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, saved)
}

// SetDefault handles POST /cards/{token}/default
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	saved, err := h.Service.SetDefault(r.Context(), userID, chi.URLParam(r, "token"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, saved)
}

// Delete handles DELETE /cards/{token}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), userID, chi.URLParam(r, "token")); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Save)
	r.Patch("/{token}", h.Update)
	r.Post("/{token}/default", h.SetDefault)
	r.Delete("/{token}", h.Delete)
}
