package transaction_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appErrors "github.com/ortizpassos/trustpay/internal"
	"github.com/ortizpassos/trustpay/internal/core/events"
	"github.com/ortizpassos/trustpay/internal/gateway"
	"github.com/ortizpassos/trustpay/internal/transaction"
	"github.com/ortizpassos/trustpay/internal/vault"
)

type mockTransactionRepository struct {
	mu      sync.Mutex
	byID    map[string]*transaction.Transaction
	active  map[string]string
	clock   func() time.Time
	listErr error
}

func newMockTransactionRepository(clock func() time.Time) *mockTransactionRepository {
	return &mockTransactionRepository{
		byID:   map[string]*transaction.Transaction{},
		active: map[string]string{},
		clock:  clock,
	}
}

func clone(t *transaction.Transaction) *transaction.Transaction {
	cp := *t
	return &cp
}

func (m *mockTransactionRepository) CreateIfAbsent(_ context.Context, t *transaction.Transaction) (*transaction.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := *t.ActiveKey()
	if holder, ok := m.active[key]; ok {
		return clone(m.byID[holder]), false, nil
	}
	m.byID[t.ID] = clone(t)
	m.active[key] = t.ID
	return clone(t), true, nil
}

func (m *mockTransactionRepository) GetByID(_ context.Context, id string) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	return clone(t), nil
}

func (m *mockTransactionRepository) List(_ context.Context, filter transaction.Filter) ([]*transaction.Transaction, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*transaction.Transaction
	for _, t := range m.byID {
		if t.OwnerScope != filter.OwnerScope {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.PaymentMethod != "" && t.PaymentMethod != filter.PaymentMethod {
			continue
		}
		out = append(out, clone(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockTransactionRepository) Transition(_ context.Context, id string, from []transaction.Status, update transaction.Update) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}
	allowed := false
	for _, s := range from {
		if s == t.Status {
			allowed = true
		}
	}
	if !allowed {
		return nil, transaction.ErrStatusConflict
	}

	key := transaction.ActiveKey(t.OwnerScope, t.OrderID)
	update.Apply(t, m.clock())
	if !t.Status.IsActive() && m.active[key] == id {
		delete(m.active, key)
	}
	return clone(t), nil
}

func (m *mockTransactionRepository) FindExpiredPix(_ context.Context, now time.Time, limit int) ([]*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*transaction.Transaction
	for _, t := range m.byID {
		if t.PaymentMethod == transaction.MethodPix && t.Status == transaction.StatusPending &&
			t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			out = append(out, clone(t))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// forceStatus lets tests simulate a concurrent writer.
func (m *mockTransactionRepository) forceStatus(id string, status transaction.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = status
}

type stubGateway struct {
	authorize func(ctx context.Context, req gateway.CardAuthorization) (*gateway.CardResult, error)
	issue     func(ctx context.Context, req gateway.PixRequest) (*gateway.PixCharge, error)
	check     func(ctx context.Context, bankPixID string) (*gateway.PixStatus, error)

	authorizeCalls int
	issueCalls     int
	checkCalls     int
	lastAuth       gateway.CardAuthorization
}

func (g *stubGateway) AuthorizeCard(ctx context.Context, req gateway.CardAuthorization) (*gateway.CardResult, error) {
	g.authorizeCalls++
	g.lastAuth = req
	if g.authorize == nil {
		return nil, errors.New("authorize not configured")
	}
	return g.authorize(ctx, req)
}

func (g *stubGateway) IssuePix(ctx context.Context, req gateway.PixRequest) (*gateway.PixCharge, error) {
	g.issueCalls++
	if g.issue == nil {
		return nil, errors.New("issue not configured")
	}
	return g.issue(ctx, req)
}

func (g *stubGateway) CheckPixStatus(ctx context.Context, bankPixID string) (*gateway.PixStatus, error) {
	g.checkCalls++
	if g.check == nil {
		return nil, errors.New("check not configured")
	}
	return g.check(ctx, bankPixID)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.TransactionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if te, ok := event.(*events.TransactionEvent); ok {
		p.events = append(p.events, te)
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type mockCardStore struct {
	cards       map[string]*vault.Card
	remembered  []vault.Card
	rememberErr error
}

func (m *mockCardStore) ResolveCard(_ context.Context, userID, token string) (*vault.Card, error) {
	card, ok := m.cards[userID+"/"+token]
	if !ok {
		return nil, appErrors.ErrCardNotFound
	}
	cp := *card
	return &cp, nil
}

func (m *mockCardStore) RememberCard(_ context.Context, _ string, card vault.Card) error {
	m.remembered = append(m.remembered, card)
	return m.rememberErr
}

type mockRecipientDirectory struct {
	byID  map[string]bool
	byKey map[string]string
	err   error
}

func (m *mockRecipientDirectory) ResolveRecipient(_ context.Context, userID, pixKey string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if userID != "" {
		if m.byID[userID] {
			return userID, nil
		}
		return "", appErrors.ErrUserNotFound
	}
	if id, ok := m.byKey[pixKey]; ok {
		return id, nil
	}
	return "", appErrors.ErrUserNotFound
}
