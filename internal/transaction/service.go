package transaction

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	errors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/core/common/cardnumber"
	"github.com/ortizpassos/trustpay/internal/core/events"
	"github.com/ortizpassos/trustpay/internal/gateway"
	"github.com/ortizpassos/trustpay/internal/installment"
	"github.com/ortizpassos/trustpay/internal/vault"
)

const (
	DefaultPixExpiry      = 30 * time.Minute
	DefaultGatewayTimeout = 10 * time.Second
	DefaultListLimit      = 20
	MaxListLimit          = 100

	genericFailureReason = "payment processing failed"
	pixDeclinedReason    = "pix payment declined"
	pixExpiredReason     = "pix charge expired"
	defaultCancelReason  = "cancelled by request"
)

// CardStore gives the engine access to a user's saved cards.
type CardStore interface {
	ResolveCard(ctx context.Context, userID, token string) (*vault.Card, error)
	RememberCard(ctx context.Context, userID string, card vault.Card) error
}

// RecipientDirectory resolves internal transfer counterparts by user id or PIX key.
type RecipientDirectory interface {
	ResolveRecipient(ctx context.Context, userID, pixKey string) (string, error)
}

type Config struct {
	PixExpiry      time.Duration
	GatewayTimeout time.Duration
}

type Service struct {
	repo       Repository
	gateway    gateway.Gateway
	calculator *installment.Calculator
	cards      CardStore
	recipients RecipientDirectory
	publisher  events.Publisher
	config     Config
	clock      func() time.Time
	newID      func() string
	logger     *slog.Logger
}

type Option func(*Service)

func WithCardStore(cards CardStore) Option {
	return func(s *Service) { s.cards = cards }
}

func WithRecipientDirectory(dir RecipientDirectory) Option {
	return func(s *Service) { s.recipients = dir }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(repo Repository, gw gateway.Gateway, calculator *installment.Calculator, config Config, logger *slog.Logger, opts ...Option) *Service {
	if config.PixExpiry <= 0 {
		config.PixExpiry = DefaultPixExpiry
	}
	if config.GatewayTimeout <= 0 {
		config.GatewayTimeout = DefaultGatewayTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:       repo,
		gateway:    gw,
		calculator: calculator,
		config:     config,
		clock:      time.Now,
		newID:      uuid.NewString,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIntent opens a PENDING transaction, or returns the active one already holding
// (owner, orderId) with idempotent=true.
func (s *Service) CreateIntent(ctx context.Context, owner Owner, dto CreateIntentDTO) (*Transaction, bool, error) {
	if !owner.Valid() {
		return nil, false, errors.NewInternalError("transaction owner is ambiguous", nil)
	}

	dto.Normalize()
	if appErr := dto.Validate(s.calculator.Max()); appErr != nil {
		return nil, false, appErr
	}

	method := Method(dto.PaymentMethod)
	if method == MethodInternalTransfer {
		if owner.IsMerchant() {
			return nil, false, errors.NewValidationFieldError("paymentMethod", "internal_transfer is only available to users", errors.ErrCodeInvalidPaymentMethod)
		}
		if dto.RecipientUserID != "" && dto.RecipientUserID == owner.UserID {
			return nil, false, errors.NewValidationFieldError("recipientUserId", "recipient must differ from payer", errors.ErrCodeInvalidRecipient)
		}
	}

	now := s.clock().UTC()
	tx := &Transaction{
		ID:              s.newID(),
		OrderID:         dto.OrderID,
		OwnerScope:      owner.Scope(),
		UserID:          owner.UserID,
		MerchantID:      owner.MerchantID,
		RecipientUserID: dto.RecipientUserID,
		RecipientPixKey: dto.RecipientPixKey,
		Amount:          dto.Amount,
		Currency:        dto.Currency,
		PaymentMethod:   method,
		Status:          StatusPending,
		Description:     dto.Description,
		Customer:        dto.Customer,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch method {
	case MethodCreditCard:
		quantity := 1
		if dto.Installments != nil {
			quantity = *dto.Installments
		}
		plan, err := s.calculator.Calculate(dto.Amount, quantity)
		if err != nil {
			return nil, false, errors.NewValidationFieldError("installments", err.Error(), errors.ErrCodeInvalidInstallments)
		}
		tx.Installments = plan
		if plan.Quantity > 1 {
			base := dto.Amount
			tx.BaseAmount = &base
			tx.Amount = plan.TotalWithInterest
		}
	case MethodPix:
		expiresAt := now.Add(s.config.PixExpiry)
		tx.ExpiresAt = &expiresAt
	}

	stored, created, err := s.repo.CreateIfAbsent(ctx, tx)
	if err != nil {
		s.logger.Error("failed to create transaction", "error", err, "order_id", tx.OrderID, "owner", tx.OwnerScope)
		return nil, false, errors.NewInternalError("failed to create transaction", err)
	}

	if !created {
		s.logger.Info("idempotent intent hit",
			"transaction_id", stored.ID,
			"order_id", stored.OrderID,
			"owner", stored.OwnerScope,
			"status", stored.Status)
		return stored, true, nil
	}

	s.logger.Info("transaction intent created",
		"transaction_id", stored.ID,
		"order_id", stored.OrderID,
		"owner", stored.OwnerScope,
		"method", stored.PaymentMethod,
		"amount", stored.Amount.StringFixed(2),
		"currency", stored.Currency)

	return stored, false, nil
}

func (s *Service) Get(ctx context.Context, owner Owner, id string) (*Transaction, error) {
	tx, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load transaction")
	}
	if !tx.OwnedBy(owner) {
		return nil, errors.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *Service) List(ctx context.Context, owner Owner, query ListQuery) ([]*Transaction, error) {
	if appErr := query.Validate(); appErr != nil {
		return nil, appErr
	}
	if query.Limit <= 0 || query.Limit > MaxListLimit {
		query.Limit = DefaultListLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	txs, err := s.repo.List(ctx, Filter{
		OwnerScope:    owner.Scope(),
		Status:        Status(query.Status),
		PaymentMethod: Method(query.PaymentMethod),
		Limit:         query.Limit,
		Offset:        query.Offset,
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to list transactions", err)
	}
	return txs, nil
}

// Capture authorizes a PENDING credit-card transaction with a new or saved card.
// A PROCESSING answer from the gateway is stored as is; only Cancel moves it on.
func (s *Service) Capture(ctx context.Context, owner Owner, id string, dto CaptureDTO) (*Transaction, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if tx.PaymentMethod != MethodCreditCard {
		return nil, errors.ErrMethodNotSupported
	}
	if tx.Status != StatusPending {
		return nil, errors.ErrInvalidTransactionStatus
	}

	now := s.clock().UTC()
	card, err := s.resolveCard(ctx, owner, dto, now)
	if err != nil {
		return nil, err
	}

	brand := string(cardnumber.Classify(card.Number))
	lastFour := cardnumber.LastFour(card.Number)

	processing, err := s.repo.Transition(ctx, tx.ID, []Status{StatusPending}, Update{
		Status:       StatusProcessing,
		CardBrand:    &brand,
		CardLastFour: &lastFour,
	})
	if err != nil {
		return nil, s.mapRepoError(err, "failed to start capture")
	}

	quantity := 1
	if processing.Installments != nil {
		quantity = processing.Installments.Quantity
	}

	gwCtx, cancel := errors.WithTimeout(ctx, s.config.GatewayTimeout)
	result, gwErr := s.gateway.AuthorizeCard(gwCtx, gateway.CardAuthorization{
		OrderID:         processing.OrderID,
		CardNumber:      card.Number,
		HolderName:      card.HolderName,
		ExpirationMonth: card.ExpirationMonth,
		ExpirationYear:  card.ExpirationYear,
		Amount:          processing.Amount,
		Currency:        processing.Currency,
		Installments:    quantity,
	})
	timedOut := stdErrors.Is(gwCtx.Err(), context.DeadlineExceeded)
	cancel()

	// the outcome must be persisted even if the caller went away
	persistCtx := context.WithoutCancel(ctx)

	if gwErr != nil {
		s.logger.Error("card authorization failed",
			"error", gwErr,
			"transaction_id", processing.ID,
			"timeout", timedOut)

		failed, err := s.repo.Transition(persistCtx, processing.ID, []Status{StatusProcessing}, Update{
			Status:          StatusFailed,
			FailureReason:   strPtr(genericFailureReason),
			GatewayResponse: diagnostics(map[string]interface{}{"error": gwErr.Error(), "timeout": timedOut}),
		})
		if err != nil {
			s.logger.Error("failed to record capture failure", "error", err, "transaction_id", processing.ID)
		} else {
			s.publish(ctx, processing, failed)
		}
		return nil, errors.NewGatewayError(gwErr)
	}

	update := Update{
		Status:            StatusFailed,
		BankTransactionID: strPtr(result.BankTransactionID),
		GatewayResponse:   diagnostics(result.Diagnostics),
	}
	switch result.Status {
	case gateway.StatusApproved:
		update.Status = StatusApproved
	case gateway.StatusDeclined:
		update.Status = StatusDeclined
		update.FailureReason = strPtr(result.Reason)
	case gateway.StatusProcessing:
		update.Status = StatusProcessing
	default:
		update.FailureReason = strPtr(genericFailureReason)
	}

	final, err := s.repo.Transition(persistCtx, processing.ID, []Status{StatusProcessing}, update)
	if err != nil {
		s.logger.Warn("capture outcome lost a status race",
			"error", err,
			"transaction_id", processing.ID,
			"gateway_status", result.Status)
		return nil, s.mapRepoError(err, "failed to record capture")
	}

	s.logger.Info("capture completed",
		"transaction_id", final.ID,
		"status", final.Status,
		"brand", brand,
		"bank_transaction_id", result.BankTransactionID)

	s.publish(ctx, processing, final)

	if final.Status == StatusApproved && dto.SaveCard && dto.Card != nil && !owner.IsMerchant() && s.cards != nil {
		if err := s.cards.RememberCard(persistCtx, owner.UserID, card); err != nil {
			s.logger.Warn("failed to save card after capture", "error", err, "transaction_id", final.ID)
		}
	}

	return final, nil
}

func (s *Service) resolveCard(ctx context.Context, owner Owner, dto CaptureDTO, now time.Time) (vault.Card, error) {
	if dto.Card != nil {
		if appErr := dto.Card.Validate(now); appErr != nil {
			return vault.Card{}, appErr
		}
		return dto.Card.ToCard(), nil
	}

	if owner.IsMerchant() || s.cards == nil {
		return vault.Card{}, errors.NewValidationFieldError("savedCardToken", "saved cards are only available to users", errors.ErrCodeValidationFailed)
	}

	card, err := s.cards.ResolveCard(ctx, owner.UserID, dto.SavedCardToken)
	if err != nil {
		if _, ok := errors.IsAppError(err); ok {
			return vault.Card{}, err
		}
		return vault.Card{}, errors.NewInternalError("failed to load saved card", err)
	}
	if appErr := ValidateCard(*card, now); appErr != nil {
		return vault.Card{}, appErr
	}
	return *card, nil
}

// StartPix issues the PIX code and QR image for a PENDING pix transaction.
// While issued artifacts are unexpired it returns them without calling the gateway again.
func (s *Service) StartPix(ctx context.Context, owner Owner, id string) (*Transaction, error) {
	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if tx.PaymentMethod != MethodPix {
		return nil, errors.ErrMethodNotSupported
	}
	if tx.Status != StatusPending {
		return nil, errors.ErrInvalidTransactionStatus
	}
	if tx.HasLivePix(s.clock()) {
		return tx, nil
	}

	gwCtx, cancel := errors.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	charge, err := s.gateway.IssuePix(gwCtx, gateway.PixRequest{
		TransactionID: tx.ID,
		OrderID:       tx.OrderID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
	})
	if err != nil {
		s.logger.Error("pix issuance failed", "error", err, "transaction_id", tx.ID)
		return nil, errors.NewGatewayError(err)
	}

	expiresAt := charge.ExpiresAt
	updated, err := s.repo.Transition(context.WithoutCancel(ctx), tx.ID, []Status{StatusPending}, Update{
		Status:          StatusPending,
		BankPixID:       &charge.BankPixID,
		PixCode:         &charge.PixCode,
		QRCodeImage:     &charge.QRCodeImage,
		ExpiresAt:       &expiresAt,
		GatewayResponse: diagnostics(charge.Diagnostics),
	})
	if err != nil {
		return nil, s.mapRepoError(err, "failed to store pix charge")
	}

	s.logger.Info("pix charge attached",
		"transaction_id", updated.ID,
		"bank_pix_id", updated.BankPixID,
		"expires_at", expiresAt)

	return updated, nil
}

// CheckStatus polls the PIX provider for a PENDING pix transaction and reports whether the status changed.
func (s *Service) CheckStatus(ctx context.Context, owner Owner, id string) (*Transaction, bool, error) {
	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, false, err
	}
	if tx.PaymentMethod != MethodPix {
		return nil, false, errors.ErrMethodNotSupported
	}
	if tx.Status != StatusPending {
		return tx, false, nil
	}
	if tx.BankPixID == "" {
		return nil, false, errors.ErrPixNotStarted
	}

	if tx.ExpiresAt != nil && !s.clock().Before(*tx.ExpiresAt) {
		expired, err := s.expire(ctx, tx)
		if err != nil {
			return s.reloadAfterRace(ctx, tx, err)
		}
		return expired, true, nil
	}

	gwCtx, cancel := errors.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	result, err := s.gateway.CheckPixStatus(gwCtx, tx.BankPixID)
	if err != nil {
		s.logger.Error("pix status check failed", "error", err, "transaction_id", tx.ID)
		return nil, false, errors.NewGatewayError(err)
	}

	update := Update{
		Status:          StatusPending,
		GatewayResponse: diagnostics(result.Diagnostics),
	}
	switch result.Status {
	case gateway.StatusApproved:
		update.Status = StatusApproved
	case gateway.StatusDeclined:
		update.Status = StatusDeclined
		update.FailureReason = strPtr(pixDeclinedReason)
	case gateway.StatusExpired:
		update.Status = StatusExpired
		update.FailureReason = strPtr(pixExpiredReason)
	}

	updated, err := s.repo.Transition(context.WithoutCancel(ctx), tx.ID, []Status{StatusPending}, update)
	if err != nil {
		return s.reloadAfterRace(ctx, tx, err)
	}

	changed := updated.Status != tx.Status
	if changed {
		s.logger.Info("pix status resolved", "transaction_id", updated.ID, "status", updated.Status)
		s.publish(ctx, tx, updated)
	}
	return updated, changed, nil
}

// Refund moves an APPROVED transaction to REFUNDED. Amount defaults to the charged amount.
func (s *Service) Refund(ctx context.Context, owner Owner, id string, dto RefundDTO) (*Transaction, error) {
	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusApproved {
		return nil, errors.ErrInvalidTransactionStatus
	}
	if appErr := dto.Validate(tx.Amount); appErr != nil {
		return nil, appErr
	}

	amount := tx.Amount
	if dto.Amount != nil {
		amount = *dto.Amount
	}

	refunded, err := s.repo.Transition(ctx, tx.ID, []Status{StatusApproved}, Update{
		Status: StatusRefunded,
		Refund: &Refund{
			Amount:     amount,
			Reason:     dto.Reason,
			RefundedAt: s.clock().UTC(),
		},
	})
	if err != nil {
		return nil, s.mapRepoError(err, "failed to refund transaction")
	}

	s.logger.Info("transaction refunded",
		"transaction_id", refunded.ID,
		"amount", amount.StringFixed(2),
		"partial", amount.LessThan(tx.Amount))

	s.publish(ctx, tx, refunded)
	return refunded, nil
}

// Cancel fails a PENDING or PROCESSING transaction with a cancellation reason.
func (s *Service) Cancel(ctx context.Context, owner Owner, id string, dto CancelDTO) (*Transaction, error) {
	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusPending && tx.Status != StatusProcessing {
		return nil, errors.ErrInvalidTransactionStatus
	}

	reason := dto.Reason
	if reason == "" {
		reason = defaultCancelReason
	}

	cancelled, err := s.repo.Transition(ctx, tx.ID, []Status{StatusPending, StatusProcessing}, Update{
		Status:          StatusFailed,
		FailureReason:   strPtr(reason),
		GatewayResponse: diagnostics(map[string]interface{}{"cancelled": true, "previousStatus": string(tx.Status)}),
	})
	if err != nil {
		return nil, s.mapRepoError(err, "failed to cancel transaction")
	}

	s.logger.Info("transaction cancelled", "transaction_id", cancelled.ID, "previous_status", tx.Status)
	s.publish(ctx, tx, cancelled)
	return cancelled, nil
}

// Transfer settles a PENDING internal transfer between two users.
func (s *Service) Transfer(ctx context.Context, owner Owner, id string) (*Transaction, error) {
	tx, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if tx.PaymentMethod != MethodInternalTransfer {
		return nil, errors.ErrMethodNotSupported
	}
	if tx.Status != StatusPending {
		return nil, errors.ErrInvalidTransactionStatus
	}
	if s.recipients == nil {
		return nil, errors.NewInternalError("recipient directory is not configured", nil)
	}

	update := Update{Status: StatusApproved}

	recipientID, err := s.recipients.ResolveRecipient(ctx, tx.RecipientUserID, tx.RecipientPixKey)
	switch {
	case stdErrors.Is(err, errors.ErrUserNotFound):
		update.Status = StatusDeclined
		update.FailureReason = strPtr("recipient not found")
	case err != nil:
		return nil, errors.NewInternalError("failed to resolve recipient", err)
	case recipientID == tx.UserID:
		update.Status = StatusDeclined
		update.FailureReason = strPtr("recipient must differ from payer")
	default:
		update.RecipientUserID = &recipientID
		update.BankTransactionID = strPtr("INT" + tx.ID)
	}
	update.GatewayResponse = diagnostics(map[string]interface{}{
		"provider":  "internal",
		"status":    string(update.Status),
		"recipient": recipientID,
	})

	settled, err := s.repo.Transition(ctx, tx.ID, []Status{StatusPending}, update)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to settle transfer")
	}

	s.logger.Info("internal transfer settled", "transaction_id", settled.ID, "status", settled.Status)
	s.publish(ctx, tx, settled)
	return settled, nil
}

// ExpirePix moves PENDING pix transactions past their expiry to EXPIRED and returns how many moved.
func (s *Service) ExpirePix(ctx context.Context, limit int) (int, error) {
	overdue, err := s.repo.FindExpiredPix(ctx, s.clock().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("find expired pix: %w", err)
	}

	expired := 0
	for _, tx := range overdue {
		if _, err := s.expire(ctx, tx); err != nil {
			if stdErrors.Is(err, ErrStatusConflict) {
				continue
			}
			return expired, fmt.Errorf("expire transaction %s: %w", tx.ID, err)
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("expired overdue pix transactions", "count", expired)
	}
	return expired, nil
}

func (s *Service) expire(ctx context.Context, tx *Transaction) (*Transaction, error) {
	expired, err := s.repo.Transition(ctx, tx.ID, []Status{StatusPending}, Update{
		Status:        StatusExpired,
		FailureReason: strPtr(pixExpiredReason),
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, tx, expired)
	return expired, nil
}

func (s *Service) reloadAfterRace(ctx context.Context, tx *Transaction, err error) (*Transaction, bool, error) {
	if !stdErrors.Is(err, ErrStatusConflict) {
		return nil, false, errors.NewInternalError("failed to update transaction", err)
	}
	current, getErr := s.repo.GetByID(ctx, tx.ID)
	if getErr != nil {
		return nil, false, s.mapRepoError(getErr, "failed to load transaction")
	}
	return current, false, nil
}

func (s *Service) mapRepoError(err error, message string) error {
	switch {
	case stdErrors.Is(err, ErrNotFound):
		return errors.ErrTransactionNotFound
	case stdErrors.Is(err, ErrStatusConflict):
		return errors.ErrInvalidTransactionStatus
	}
	return errors.NewInternalError(message, err)
}

func (s *Service) publish(ctx context.Context, before, after *Transaction) {
	if s.publisher == nil || before.Status == after.Status {
		return
	}
	eventType, ok := events.EventTypeForStatus(string(after.Status))
	if !ok {
		return
	}

	event := events.NewTransactionEvent(eventType, events.TransactionEventInput{
		TransactionID:  after.ID,
		OrderID:        after.OrderID,
		OwnerScope:     after.OwnerScope,
		PaymentMethod:  string(after.PaymentMethod),
		Amount:         after.Amount.StringFixed(2),
		Currency:       after.Currency,
		PreviousStatus: string(before.Status),
		Status:         string(after.Status),
		Reason:         after.FailureReason,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish transaction event", "error", err, "event_type", eventType, "transaction_id", after.ID)
	}
}

func diagnostics(payload map[string]interface{}) json.RawMessage {
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
