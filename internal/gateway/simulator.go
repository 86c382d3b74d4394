package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ortizpassos/trustpay/internal/core/common/cardnumber"
)

// RNG is the randomness the simulator draws from. *rand.Rand satisfies it.
type RNG interface {
	Float64() float64
	Int63n(n int64) int64
}

type Config struct {
	ApprovalRate   float64
	CardLatencyMin time.Duration
	CardLatencyMax time.Duration
	PixLatencyMin  time.Duration
	PixLatencyMax  time.Duration
	PixExpiry      time.Duration
	PixKey         string
	MerchantName   string
	MerchantCity   string
}

type Simulator struct {
	config Config
	logger *slog.Logger

	mu    sync.Mutex
	rng   RNG
	clock func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Simulator)

func WithRNG(rng RNG) Option {
	return func(s *Simulator) { s.rng = rng }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Simulator) { s.clock = clock }
}

// WithIDGenerator controls the ids handed out for card authorizations and PIX charges.
// PIX polling outcomes depend on the last digit, so tests pin it here.
func WithIDGenerator(newID func() string) Option {
	return func(s *Simulator) { s.newID = newID }
}

func NewSimulator(config Config, logger *slog.Logger, opts ...Option) *Simulator {
	if config.ApprovalRate <= 0 || config.ApprovalRate > 1 {
		config.ApprovalRate = 0.85
	}
	if config.PixExpiry <= 0 {
		config.PixExpiry = 30 * time.Minute
	}
	if config.PixKey == "" {
		config.PixKey = "pix@trustpay.dev"
	}
	if config.MerchantName == "" {
		config.MerchantName = "TRUSTPAY SANDBOX"
	}
	if config.MerchantCity == "" {
		config.MerchantCity = "SAO PAULO"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulator{
		config: config,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:  time.Now,
		sleep:  sleepContext,
	}
	s.newID = s.defaultID

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AuthorizeCard(ctx context.Context, req CardAuthorization) (*CardResult, error) {
	pan := cardnumber.Normalize(req.CardNumber)
	if pan == "" {
		return nil, ErrInvalidCard
	}

	latency := s.latency(s.config.CardLatencyMin, s.config.CardLatencyMax)
	if err := s.sleep(ctx, latency); err != nil {
		s.logger.Warn("card authorization interrupted", "order_id", req.OrderID, "error", err)
		return nil, err
	}

	status, reason, fixed := TestCardOutcome(pan)
	if !fixed {
		status, reason = s.draw()
	}

	result := &CardResult{
		Status:            status,
		BankTransactionID: "TXN" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16]),
		Reason:            reason,
		Diagnostics: map[string]interface{}{
			"provider":     "simulator",
			"brand":        string(cardnumber.Classify(pan)),
			"card":         cardnumber.Mask(pan),
			"status":       string(status),
			"reason":       reason,
			"testCard":     fixed,
			"latencyMs":    latency.Milliseconds(),
			"amount":       req.Amount.StringFixed(2),
			"currency":     req.Currency,
			"installments": req.Installments,
		},
	}
	if status == StatusApproved {
		result.Diagnostics["authorizationCode"] = fmt.Sprintf("%06d", s.intn(1000000))
	}

	s.logger.Info("card authorization simulated",
		"order_id", req.OrderID,
		"status", status,
		"brand", cardnumber.Classify(pan),
		"bank_transaction_id", result.BankTransactionID)

	return result, nil
}

func (s *Simulator) IssuePix(ctx context.Context, req PixRequest) (*PixCharge, error) {
	latency := s.latency(s.config.PixLatencyMin, s.config.PixLatencyMax)
	if err := s.sleep(ctx, latency); err != nil {
		return nil, err
	}

	bankPixID := s.newID()
	code := pixPayload{
		Key:          s.config.PixKey,
		MerchantName: s.config.MerchantName,
		MerchantCity: s.config.MerchantCity,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Reference:    bankPixID,
	}.encode()

	image, err := qrDataURI(code)
	if err != nil {
		return nil, err
	}

	expiresAt := s.clock().Add(s.config.PixExpiry).UTC()

	s.logger.Info("pix charge issued",
		"transaction_id", req.TransactionID,
		"bank_pix_id", bankPixID,
		"expires_at", expiresAt)

	return &PixCharge{
		BankPixID:   bankPixID,
		PixCode:     code,
		QRCodeImage: image,
		ExpiresAt:   expiresAt,
		Diagnostics: map[string]interface{}{
			"provider":  "simulator",
			"bankPixId": bankPixID,
			"amount":    req.Amount.StringFixed(2),
			"currency":  req.Currency,
			"latencyMs": latency.Milliseconds(),
		},
	}, nil
}

// CheckPixStatus resolves a charge from the last digit of its id:
// 0-3 approved, 4-6 pending, 7-8 declined, 9 expired.
func (s *Simulator) CheckPixStatus(ctx context.Context, bankPixID string) (*PixStatus, error) {
	if bankPixID == "" {
		return nil, ErrInvalidPixID
	}
	last := bankPixID[len(bankPixID)-1]
	if last < '0' || last > '9' {
		return nil, ErrInvalidPixID
	}

	latency := s.latency(s.config.PixLatencyMin, s.config.PixLatencyMax)
	if err := s.sleep(ctx, latency); err != nil {
		return nil, err
	}

	status := pixStatusForDigit(int(last - '0'))

	s.logger.Debug("pix status polled", "bank_pix_id", bankPixID, "status", status)

	return &PixStatus{
		BankPixID: bankPixID,
		Status:    status,
		Diagnostics: map[string]interface{}{
			"provider":  "simulator",
			"bankPixId": bankPixID,
			"status":    string(status),
			"checkedAt": s.clock().UTC().Format(time.RFC3339),
		},
	}, nil
}

func pixStatusForDigit(d int) Status {
	switch {
	case d <= 3:
		return StatusApproved
	case d <= 6:
		return StatusPending
	case d <= 8:
		return StatusDeclined
	default:
		return StatusExpired
	}
}

func (s *Simulator) draw() (Status, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() < s.config.ApprovalRate {
		return StatusApproved, "approved by issuer"
	}
	return StatusDeclined, randomDeclineReasons[s.rng.Int63n(int64(len(randomDeclineReasons)))]
}

func (s *Simulator) intn(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int63n(n)
}

func (s *Simulator) latency(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.intn(int64(hi-lo)+1))
}

func (s *Simulator) defaultID() string {
	return fmt.Sprintf("PIX%d%06d", s.clock().UnixMilli(), s.intn(1000000))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Gateway = (*Simulator)(nil)
