package transaction

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/transport"
)

type ServiceAPI interface {
	CreateIntent(ctx context.Context, owner Owner, dto CreateIntentDTO) (*Transaction, bool, error)
	Get(ctx context.Context, owner Owner, id string) (*Transaction, error)
	List(ctx context.Context, owner Owner, query ListQuery) ([]*Transaction, error)
	Capture(ctx context.Context, owner Owner, id string, dto CaptureDTO) (*Transaction, error)
	StartPix(ctx context.Context, owner Owner, id string) (*Transaction, error)
	CheckStatus(ctx context.Context, owner Owner, id string) (*Transaction, bool, error)
	Refund(ctx context.Context, owner Owner, id string, dto RefundDTO) (*Transaction, error)
	Cancel(ctx context.Context, owner Owner, id string, dto CancelDTO) (*Transaction, error)
	Transfer(ctx context.Context, owner Owner, id string) (*Transaction, error)
}

// Handler serves both the end-user API and the merchant API. The owner comes from
// whichever authentication middleware ran in front of it.
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

func (h *Handler) owner(r *http.Request) (Owner, *errors.AppError) {
	ctx := r.Context()
	if merchantID := errors.MerchantIDFromContext(ctx); merchantID != "" {
		return MerchantOwner(merchantID), nil
	}
	if userID := errors.UserIDFromContext(ctx); userID != "" {
		return UserOwner(userID), nil
	}
	return Owner{}, errors.ErrAuthenticationFailed
}

// CreateIntent handles POST /payments and POST /payment-intents
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req CreateIntentDTO
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	tx, idempotent, err := h.Service.CreateIntent(r.Context(), owner, req)
	if err != nil {
		h.Logger.Error("CreateIntent: service error", "error", err, "owner", owner.Scope())
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if idempotent {
		status = http.StatusOK
	}
	h.WriteJSON(w, status, IntentResponse{Transaction: tx, Idempotent: idempotent})
}

// List handles GET /payments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	limit, offset := h.Pagination(r)
	query := ListQuery{
		Status:        r.URL.Query().Get("status"),
		PaymentMethod: r.URL.Query().Get("paymentMethod"),
		Limit:         limit,
		Offset:        offset,
	}

	txs, err := h.Service.List(r.Context(), owner, query)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []*Transaction{}
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{Transactions: txs, Limit: limit, Offset: offset})
}

// Get handles GET /payments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	tx, err := h.Service.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// Capture handles POST /payments/{id}/capture
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req CaptureDTO
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	id := chi.URLParam(r, "id")
	tx, err := h.Service.Capture(r.Context(), owner, id, req)
	if err != nil {
		h.Logger.Error("Capture: service error", "error", err, "transaction_id", id)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// StartPix handles POST /payments/{id}/pix
func (h *Handler) StartPix(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	tx, err := h.Service.StartPix(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewPixResponse(tx))
}

// CheckStatus handles GET /payments/{id}/status
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	tx, changed, err := h.Service.CheckStatus(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, StatusResponse{Transaction: tx, Changed: changed})
}

// Refund handles POST /payments/{id}/refund. The body is optional.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req RefundDTO
	if r.ContentLength != 0 {
		if appErr := h.DecodeJSON(r, &req); appErr != nil {
			h.HandleError(w, appErr)
			return
		}
	}

	tx, err := h.Service.Refund(r.Context(), owner, chi.URLParam(r, "id"), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// Cancel handles POST /payments/{id}/cancel. The body is optional.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	var req CancelDTO
	if r.ContentLength != 0 {
		if appErr := h.DecodeJSON(r, &req); appErr != nil {
			h.HandleError(w, appErr)
			return
		}
	}

	tx, err := h.Service.Cancel(r.Context(), owner, chi.URLParam(r, "id"), req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// Transfer handles POST /payments/{id}/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	owner, appErr := h.owner(r)
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	tx, err := h.Service.Transfer(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, tx)
}

// Routes mounts the payment endpoints. Transfer is only mounted for end users.
func (h *Handler) Routes(r chi.Router, withTransfer bool) {
	r.Post("/", h.CreateIntent)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/capture", h.Capture)
	r.Post("/{id}/pix", h.StartPix)
	r.Get("/{id}/status", h.CheckStatus)
	r.Post("/{id}/refund", h.Refund)
	r.Post("/{id}/cancel", h.Cancel)
	if withTransfer {
		r.Post("/{id}/transfer", h.Transfer)
	}
}
