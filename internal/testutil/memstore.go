// Package testutil provides in-memory implementations of the store contracts
// and small fixtures shared by service and handler tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/store"
)

type memState struct {
	registros  map[uuid.UUID]models.Registro
	order      []uuid.UUID
	transacoes map[uuid.UUID]models.TransacaoBlockchain
	logs       []models.ProcessingLogEntry
	credits    map[uuid.UUID]models.Credits
	ledger     []models.CreditLedgerEntry
	projects   map[uuid.UUID]models.Project
	alerts     []models.Alert
	webhooks   []models.WebhookLog
}

func newMemState() *memState {
	return &memState{
		registros:  map[uuid.UUID]models.Registro{},
		transacoes: map[uuid.UUID]models.TransacaoBlockchain{},
		credits:    map[uuid.UUID]models.Credits{},
		projects:   map[uuid.UUID]models.Project{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.registros {
		c.registros[k] = v
	}
	c.order = append([]uuid.UUID(nil), s.order...)
	for k, v := range s.transacoes {
		c.transacoes[k] = v
	}
	c.logs = append([]models.ProcessingLogEntry(nil), s.logs...)
	for k, v := range s.credits {
		c.credits[k] = v
	}
	c.ledger = append([]models.CreditLedgerEntry(nil), s.ledger...)
	for k, v := range s.projects {
		c.projects[k] = v
	}
	c.alerts = append([]models.Alert(nil), s.alerts...)
	c.webhooks = append([]models.WebhookLog(nil), s.webhooks...)
	return c
}

// activeConflict reports whether another non-failed registro of the same
// user already holds the hash, mirroring the partial unique index.
func (s *memState) activeConflict(r models.Registro) bool {
	if r.Status == models.StatusFalhou {
		return false
	}
	return s.liveSibling(r)
}

// liveSibling reports whether another registro of the same user and hash
// holds the live slot.
func (s *memState) liveSibling(r models.Registro) bool {
	for id, other := range s.registros {
		if id != r.ID && other.UserID == r.UserID && other.HashSHA256 == r.HashSHA256 && other.Status != models.StatusFalhou {
			return true
		}
	}
	return false
}

// MemStore implements every store interface in memory. Transactions hold a
// single mutex and work on a copy of the state, so a failed fn leaves nothing
// behind.
type MemStore struct {
	mu    sync.Mutex
	state *memState
	fail  map[string]error
	Now   func() time.Time
}

var (
	_ store.TxRunner      = (*MemStore)(nil)
	_ store.RegistroStore = (*MemStore)(nil)
	_ store.LedgerStore   = (*MemStore)(nil)
	_ store.ProjectStore  = (*MemStore)(nil)
	_ store.AlertStore    = (*MemStore)(nil)
	_ store.WebhookStore  = (*MemStore)(nil)
	_ store.MonitorStore  = (*MemStore)(nil)
	_ store.Tx            = (*memTx)(nil)
)

func NewMemStore() *MemStore {
	return &MemStore{state: newMemState(), fail: map[string]error{}, Now: time.Now}
}

// FailOn makes the named method return err until cleared with a nil err.
func (m *MemStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, method)
		return
	}
	m.fail[method] = err
}

func (m *MemStore) injected(method string) error {
	return m.fail[method]
}

func (m *MemStore) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	if err := fn(&memTx{s: working, m: m}); err != nil {
		return err
	}
	m.state = working
	return nil
}

type memTx struct {
	s *memState
	m *MemStore
}

func (t *memTx) LockRegistro(_ context.Context, id uuid.UUID) (*models.Registro, error) {
	if err := t.m.injected("LockRegistro"); err != nil {
		return nil, err
	}
	r, ok := t.s.registros[id]
	if !ok {
		return nil, fmt.Errorf("registro: %w", store.ErrNotFound)
	}
	return &r, nil
}

func (t *memTx) UpdateRegistroState(_ context.Context, r *models.Registro) error {
	cur, ok := t.s.registros[r.ID]
	if !ok {
		return fmt.Errorf("registro %s: %w", r.ID, store.ErrNotFound)
	}
	if t.s.activeConflict(*r) {
		return fmt.Errorf("registro %s: %w", r.ID, store.ErrConflict)
	}
	cur.Status = r.Status
	cur.AttemptNumber = r.AttemptNumber
	cur.ErrorMessage = r.ErrorMessage
	cur.UpdatedAt = r.UpdatedAt
	t.s.registros[r.ID] = cur
	return nil
}

func (t *memTx) InsertTransacao(_ context.Context, tr *models.TransacaoBlockchain) error {
	if err := t.m.injected("InsertTransacao"); err != nil {
		return err
	}
	if _, exists := t.s.transacoes[tr.RegistroID]; exists {
		return fmt.Errorf("transacao for registro %s: %w", tr.RegistroID, store.ErrConflict)
	}
	t.s.transacoes[tr.RegistroID] = *tr
	return nil
}

func (t *memTx) GetTransacao(_ context.Context, registroID uuid.UUID) (*models.TransacaoBlockchain, error) {
	tr, ok := t.s.transacoes[registroID]
	if !ok {
		return nil, fmt.Errorf("transacao: %w", store.ErrNotFound)
	}
	return &tr, nil
}

func (t *memTx) InsertProcessingLog(_ context.Context, l *models.ProcessingLogEntry) error {
	t.s.logs = append(t.s.logs, *l)
	return nil
}

func (t *memTx) LockCredits(_ context.Context, userID uuid.UUID) (*models.Credits, error) {
	c, ok := t.s.credits[userID]
	if !ok {
		c = models.Credits{UserID: userID, UpdatedAt: t.m.Now()}
		t.s.credits[userID] = c
	}
	return &c, nil
}

func (t *memTx) SetAvailableCredits(_ context.Context, userID uuid.UUID, balance int, at time.Time) error {
	t.s.credits[userID] = models.Credits{UserID: userID, AvailableCredits: balance, UpdatedAt: at}
	return nil
}

func (t *memTx) SumLedger(_ context.Context, userID uuid.UUID) (int, error) {
	sum := 0
	for _, e := range t.s.ledger {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (t *memTx) FindLedgerByReference(_ context.Context, userID uuid.UUID, op models.LedgerOperation, refType, refID string) (*models.CreditLedgerEntry, error) {
	for _, e := range t.s.ledger {
		if e.UserID == userID && e.Operation == op &&
			e.ReferenceType.String == refType && e.ReferenceID.Valid && e.ReferenceID.String == refID {
			found := e
			return &found, nil
		}
	}
	return nil, fmt.Errorf("ledger entry: %w", store.ErrNotFound)
}

func (t *memTx) InsertLedgerEntry(ctx context.Context, e *models.CreditLedgerEntry) error {
	if err := t.m.injected("InsertLedgerEntry"); err != nil {
		return err
	}
	if e.ReferenceID.Valid {
		if _, err := t.FindLedgerByReference(ctx, e.UserID, e.Operation, e.ReferenceType.String, e.ReferenceID.String); err == nil {
			return fmt.Errorf("ledger entry: %w", store.ErrConflict)
		}
	}
	t.s.ledger = append(t.s.ledger, *e)
	return nil
}

func (m *MemStore) CreateRegistro(_ context.Context, r *models.Registro) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CreateRegistro"); err != nil {
		return err
	}
	if m.state.activeConflict(*r) {
		return fmt.Errorf("registro for hash %s: %w", r.HashSHA256, store.ErrConflict)
	}
	now := m.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	m.state.registros[r.ID] = *r
	m.state.order = append(m.state.order, r.ID)
	return nil
}

func (m *MemStore) GetRegistro(_ context.Context, id uuid.UUID) (*models.Registro, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.registros[id]
	if !ok {
		return nil, fmt.Errorf("registro: %w", store.ErrNotFound)
	}
	return &r, nil
}

func (m *MemStore) ListRegistros(_ context.Context, userID uuid.UUID, limit int) ([]models.Registro, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registro
	for i := len(m.state.order) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.state.registros[m.state.order[i]]
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) FindActiveRegistroByHash(_ context.Context, userID uuid.UUID, hash string) (*models.Registro, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("FindActiveRegistroByHash"); err != nil {
		return nil, err
	}
	for _, id := range m.state.order {
		r := m.state.registros[id]
		if r.UserID == userID && r.HashSHA256 == hash && r.Status != models.StatusFalhou {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("registro: %w", store.ErrNotFound)
}

func (m *MemStore) FindConfirmedByHash(_ context.Context, hash string) (*models.Registro, *models.TransacaoBlockchain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("FindConfirmedByHash"); err != nil {
		return nil, nil, err
	}
	for _, id := range m.state.order {
		r := m.state.registros[id]
		if r.HashSHA256 == hash && r.Status == models.StatusConfirmado {
			if tr, ok := m.state.transacoes[id]; ok {
				return &r, &tr, nil
			}
			return &r, nil, nil
		}
	}
	return nil, nil, fmt.Errorf("registro: %w", store.ErrNotFound)
}

func (m *MemStore) ListProcessable(_ context.Context, maxAttempts, limit int) ([]models.Registro, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registro
	for _, id := range m.state.order {
		if len(out) >= limit {
			break
		}
		r := m.state.registros[id]
		retryable := r.Status == models.StatusFalhou && r.AttemptNumber < maxAttempts && !m.state.liveSibling(r)
		if r.Status == models.StatusPendente || retryable {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) GetTransacao(_ context.Context, registroID uuid.UUID) (*models.TransacaoBlockchain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tr, ok := m.state.transacoes[registroID]
	if !ok {
		return nil, fmt.Errorf("transacao: %w", store.ErrNotFound)
	}
	return &tr, nil
}

func (m *MemStore) ListProcessingLogs(_ context.Context, registroID uuid.UUID) ([]models.ProcessingLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProcessingLogEntry
	for _, l := range m.state.logs {
		if l.RegistroID == registroID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemStore) GetCredits(_ context.Context, userID uuid.UUID) (*models.Credits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.credits[userID]
	if !ok {
		return nil, fmt.Errorf("credits: %w", store.ErrNotFound)
	}
	return &c, nil
}

func (m *MemStore) ListLedgerEntries(_ context.Context, userID uuid.UUID, limit int) ([]models.CreditLedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CreditLedgerEntry
	for i := len(m.state.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if e := m.state.ledger[i]; e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) CreateProject(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.projects[p.ID] = *p
	return nil
}

func (m *MemStore) GetProject(_ context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.projects[id]
	if !ok {
		return nil, fmt.Errorf("project: %w", store.ErrNotFound)
	}
	return &p, nil
}

func (m *MemStore) ListProjects(_ context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Project
	for _, p := range m.state.projects {
		if p.OwnerUserID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) UpdateProjectStatus(_ context.Context, id uuid.UUID, status string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	p.Status = status
	p.UpdatedAt = at
	m.state.projects[id] = p
	return nil
}

func (m *MemStore) InsertAlert(_ context.Context, a *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("InsertAlert"); err != nil {
		return err
	}
	m.state.alerts = append(m.state.alerts, *a)
	return nil
}

func (m *MemStore) ListAlerts(_ context.Context, limit int, level models.AlertLevel) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Alert
	for i := len(m.state.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if a := m.state.alerts[i]; level == "" || a.Level == level {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemStore) InsertWebhookLog(_ context.Context, l *models.WebhookLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.state.webhooks {
		if w.Provider == l.Provider && w.EventID == l.EventID {
			return fmt.Errorf("webhook %s/%s: %w", l.Provider, l.EventID, store.ErrConflict)
		}
	}
	m.state.webhooks = append(m.state.webhooks, *l)
	return nil
}

func (m *MemStore) ReopenFailedWebhookLog(_ context.Context, provider, eventID string, payload []byte) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.webhooks {
		w := &m.state.webhooks[i]
		if w.Provider != provider || w.EventID != eventID || w.Success {
			continue
		}
		if len(payload) > 0 {
			w.Payload = payload
		}
		w.ErrorMessage = ""
		return w.ID, nil
	}
	return uuid.Nil, fmt.Errorf("failed webhook %s/%s: %w", provider, eventID, store.ErrNotFound)
}

func (m *MemStore) UpdateWebhookLogResult(_ context.Context, id uuid.UUID, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.webhooks {
		if m.state.webhooks[i].ID == id {
			m.state.webhooks[i].Success = success
			m.state.webhooks[i].ErrorMessage = errMsg
			return nil
		}
	}
	return fmt.Errorf("webhook log %s: %w", id, store.ErrNotFound)
}

func (m *MemStore) CountStuckRegistros(_ context.Context, updatedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CountStuckRegistros"); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range m.state.registros {
		if r.Status == models.StatusProcessando && r.UpdatedAt.Before(updatedBefore) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CountRegistrosCreatedSince(_ context.Context, since time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CountRegistrosCreatedSince"); err != nil {
		return 0, 0, err
	}
	total, failed := 0, 0
	for _, r := range m.state.registros {
		if !r.CreatedAt.Before(since) {
			total++
			if r.Status == models.StatusFalhou {
				failed++
			}
		}
	}
	return total, failed, nil
}

func (m *MemStore) CountWebhookErrorsSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CountWebhookErrorsSince"); err != nil {
		return 0, err
	}
	n := 0
	for _, w := range m.state.webhooks {
		if !w.Success && !w.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CountRegistrosByStatus(_ context.Context, status models.RegistroStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CountRegistrosByStatus"); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range m.state.registros {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CountFailedAttemptsSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CountFailedAttemptsSince"); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range m.state.logs {
		if !l.Success && !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CountNegativeBalances(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CountNegativeBalances"); err != nil {
		return 0, err
	}
	n := 0
	for _, c := range m.state.credits {
		if c.AvailableCredits < 0 {
			n++
		}
	}
	return n, nil
}

// Fixtures

// SeedRegistro stores r as-is, bypassing the duplicate guard.
func (m *MemStore) SeedRegistro(r models.Registro) models.Registro {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.StatusPendente
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	m.state.registros[r.ID] = r
	m.state.order = append(m.state.order, r.ID)
	return r
}

func (m *MemStore) SeedTransacao(t models.TransacaoBlockchain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.state.transacoes[t.RegistroID] = t
}

func (m *MemStore) SeedProcessingLog(l models.ProcessingLogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.state.logs = append(m.state.logs, l)
}

// SeedCredits grants amount credits through an ADD entry so that the cached
// balance and the ledger stay consistent.
func (m *MemStore) SeedCredits(userID uuid.UUID, amount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance := m.state.credits[userID].AvailableCredits + amount
	now := m.Now()
	m.state.ledger = append(m.state.ledger, models.CreditLedgerEntry{
		ID:           uuid.New(),
		UserID:       userID,
		Operation:    models.OperationAdd,
		Amount:       amount,
		BalanceAfter: balance,
		Reason:       "seed",
		CreatedAt:    now,
	})
	m.state.credits[userID] = models.Credits{UserID: userID, AvailableCredits: balance, UpdatedAt: now}
}

// SetCachedBalance overwrites the cached balance without touching the ledger.
func (m *MemStore) SetCachedBalance(userID uuid.UUID, balance int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.credits[userID] = models.Credits{UserID: userID, AvailableCredits: balance, UpdatedAt: m.Now()}
}

func (m *MemStore) SeedProject(p models.Project) models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	m.state.projects[p.ID] = p
	return p
}

func (m *MemStore) SeedWebhookLog(l models.WebhookLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.state.webhooks = append(m.state.webhooks, l)
}

// Ledger returns the user's entries oldest first.
func (m *MemStore) Ledger(userID uuid.UUID) []models.CreditLedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CreditLedgerEntry
	for _, e := range m.state.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemStore) Balance(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.credits[userID].AvailableCredits
}

func (m *MemStore) Alerts() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Alert(nil), m.state.alerts...)
}

func (m *MemStore) WebhookLogs() []models.WebhookLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WebhookLog(nil), m.state.webhooks...)
}

func (m *MemStore) TransacaoCount(registroID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.transacoes[registroID]; ok {
		return 1
	}
	return 0
}

// NullString is a shorthand for fixtures.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
