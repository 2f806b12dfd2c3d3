package service

import (
	"context"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-pos/internal/fiscal"
	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/payment"
	"github.com/iliyamo/studio-pos/internal/queue"
	"github.com/iliyamo/studio-pos/internal/repository"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func intPtr(n int) *int { return &n }

// memTransactions mimics the conditional updates of TransactionRepo.
type memTransactions struct {
	mu          sync.Mutex
	txs         map[string]*model.Transaction
	completes   int
	completeErr error
}

func newMemTransactions(txs ...*model.Transaction) *memTransactions {
	m := &memTransactions{txs: make(map[string]*model.Transaction)}
	for _, tx := range txs {
		m.txs[tx.ID] = tx
	}
	return m
}

func (m *memTransactions) GetByID(ctx context.Context, orgID, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *memTransactions) CompletePending(ctx context.Context, orgID, id string, sig *model.FiscalSignature) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return false, m.completeErr
	}
	tx, ok := m.txs[id]
	if !ok || tx.OrganizationID != orgID || tx.Status != model.TransactionPending {
		return false, nil
	}
	tx.Status = model.TransactionCompleted
	tx.TSEData = sig
	m.completes++
	return true, nil
}

func (m *memTransactions) AttachSignature(ctx context.Context, orgID, id string, sig model.FiscalSignature) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.OrganizationID != orgID || tx.Status != model.TransactionCompleted || tx.TSEData != nil {
		return false, nil
	}
	tx.TSEData = &sig
	return true, nil
}

func (m *memTransactions) ListUnsigned(ctx context.Context, orgID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, tx := range m.txs {
		if tx.OrganizationID == orgID && tx.Status == model.TransactionCompleted && tx.TSEData == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memTransactions) get(id string) model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.txs[id]
}

func pendingTx(id, orgID string) *model.Transaction {
	return &model.Transaction{
		ID:             id,
		OrganizationID: orgID,
		TotalAmount:    decimal.RequireFromString("24.90"),
		PaymentMethod:  model.PaymentCard,
		Items:          []model.LineItem{{Name: "10er Karte", Price: decimal.RequireFromString("24.90"), Quantity: 1}},
		Status:         model.TransactionPending,
	}
}

// fakeSigner counts signing calls and hands out increasing counters.
type fakeSigner struct {
	mu      sync.Mutex
	enabled bool
	err     error
	calls   int
}

func (s *fakeSigner) IsEnabled(ctx context.Context, orgID string) bool { return s.enabled }

func (s *fakeSigner) SignTransaction(ctx context.Context, orgID string, req fiscal.SignRequest) (*model.FiscalSignature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.FiscalSignature{
		TransactionNumber: int64(s.calls),
		SignatureCounter:  int64(100 + s.calls),
		SignatureValue:    "sig-" + req.TransactionID,
		TSSSerialNumber:   "tss-serial",
		ClientID:          "client-1",
		SignedAt:          time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (s *fakeSigner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakePublisher struct {
	events []queue.TransactionUnsignedEvent
	err    error
}

func (p *fakePublisher) PublishTransactionUnsigned(ctx context.Context, ev queue.TransactionUnsignedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type fakeLocker struct {
	held bool
	err  error
}

func (l fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, !l.held, l.err
}

// memCheckins mimics CheckinRepo.  beforeConsume runs inside ConsumeEntry
// before the condition is checked and lets tests simulate a concurrent
// writer.
type memCheckins struct {
	mu            sync.Mutex
	profiles      []*model.Profile
	subs          map[string]*model.Subscription // by user id
	rows          []model.Checkin
	beforeConsume func(sub *model.Subscription)
	// onEveryConsume is like beforeConsume but stays installed.
	onEveryConsume func(sub *model.Subscription)
}

func newMemCheckins() *memCheckins {
	return &memCheckins{subs: make(map[string]*model.Subscription)}
}

func (m *memCheckins) addMember(p *model.Profile, sub *model.Subscription) {
	m.profiles = append(m.profiles, p)
	if sub != nil {
		m.subs[p.ID] = sub
	}
}

func (m *memCheckins) FindProfile(ctx context.Context, orgID, identifier string) (*model.Profile, error) {
	for _, p := range m.profiles {
		if p.OrganizationID != orgID {
			continue
		}
		if p.MemberNumber == identifier || p.ID == identifier || (p.Email != "" && strings.EqualFold(p.Email, identifier)) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memCheckins) FindActiveSubscription(ctx context.Context, orgID, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok || sub.OrganizationID != orgID || !sub.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *sub
	if sub.RemainingEntries != nil {
		cp.RemainingEntries = intPtr(*sub.RemainingEntries)
	}
	return &cp, nil
}

func (m *memCheckins) GetRemainingEntries(ctx context.Context, orgID, subscriptionID string) (*int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.byID(subscriptionID)
	if sub == nil || sub.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	if sub.RemainingEntries == nil {
		return nil, nil
	}
	return intPtr(*sub.RemainingEntries), nil
}

func (m *memCheckins) ConsumeEntry(ctx context.Context, orgID, subscriptionID string, expected int, rec *model.Checkin) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.byID(subscriptionID)
	if sub == nil || sub.OrganizationID != orgID {
		return 0, repository.ErrConflict
	}
	if m.beforeConsume != nil {
		hook := m.beforeConsume
		m.beforeConsume = nil
		hook(sub)
	}
	if m.onEveryConsume != nil {
		m.onEveryConsume(sub)
	}
	if sub.RemainingEntries == nil || *sub.RemainingEntries != expected || *sub.RemainingEntries <= 0 {
		return 0, repository.ErrConflict
	}
	*sub.RemainingEntries--
	m.rows = append(m.rows, *rec)
	return expected - 1, nil
}

func (m *memCheckins) InsertCheckin(ctx context.Context, rec *model.Checkin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *rec)
	return nil
}

func (m *memCheckins) ListCheckins(ctx context.Context, orgID string, limit int) ([]model.Checkin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Checkin
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].OrganizationID == orgID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memCheckins) byID(id string) *model.Subscription {
	for _, s := range m.subs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *memCheckins) count(status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (m *memCheckins) remaining(userID string) *int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.subs[userID].RemainingEntries; r != nil {
		return intPtr(*r)
	}
	return nil
}

// memPayments mimics PaymentRepo including the unique key.  beforeInsert
// runs once before the next insert.
type memPayments struct {
	mu           sync.Mutex
	rows         map[string]*model.PaymentRecord // by org + external id
	inserts      int
	updates      int
	beforeInsert func(m *memPayments)
}

func newMemPayments() *memPayments {
	return &memPayments{rows: make(map[string]*model.PaymentRecord)}
}

func paymentKey(orgID, ext string) string { return orgID + "/" + ext }

func (m *memPayments) GetByExternalID(ctx context.Context, orgID, externalID string) (*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[paymentKey(orgID, externalID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPayments) Insert(ctx context.Context, p *model.PaymentRecord) error {
	if hook := m.beforeInsert; hook != nil {
		m.beforeInsert = nil
		hook(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := paymentKey(p.OrganizationID, p.ExternalID)
	if _, ok := m.rows[key]; ok {
		return repository.ErrDuplicate
	}
	cp := *p
	m.rows[key] = &cp
	m.inserts++
	return nil
}

func (m *memPayments) UpdateStatus(ctx context.Context, p *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := paymentKey(p.OrganizationID, p.ExternalID)
	row, ok := m.rows[key]
	if !ok {
		return repository.ErrNotFound
	}
	row.Status, row.Method, row.PaidAt = p.Status, p.Method, p.PaidAt
	if row.TransactionID == nil {
		row.TransactionID = p.TransactionID
	}
	m.updates++
	return nil
}

type fakeConfigs struct {
	cfg *model.PaymentConfig
	err error
}

func (f fakeConfigs) GetPaymentConfig(ctx context.Context, orgID string) (*model.PaymentConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.cfg == nil {
		return nil, repository.ErrNotFound
	}
	return f.cfg, nil
}

// fakeProvider serves a fixed payment.
type fakeProvider struct {
	payment *payment.Payment
	err     error
	methods []payment.Method
	gets    int
}

func (p *fakeProvider) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	p.gets++
	if p.err != nil {
		return nil, p.err
	}
	if p.payment == nil || p.payment.ID != id {
		return nil, &payment.APIError{StatusCode: 404, Title: "Not Found"}
	}
	cp := *p.payment
	return &cp, nil
}

func (p *fakeProvider) ListMethods(ctx context.Context) ([]payment.Method, error) {
	return p.methods, p.err
}

func (p *fakeProvider) TestConnection(ctx context.Context) payment.ConnectionReport {
	return payment.ConnectionReport{Success: p.err == nil, Logs: []string{"fake"}}
}

// fakeFinalizer records calls.
type fakeFinalizer struct {
	calls []string
	err   error
}

func (f *fakeFinalizer) Finalize(ctx context.Context, transactionID, organizationID string) (FinalizeResult, error) {
	f.calls = append(f.calls, organizationID+"/"+transactionID)
	if f.err != nil {
		return FinalizeResult{}, f.err
	}
	return FinalizeResult{Outcome: OutcomeCompletedSigned}, nil
}
