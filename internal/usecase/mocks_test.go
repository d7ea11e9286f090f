package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sentinelzap/internal/domain"
	"sentinelzap/internal/domain/model"
	"sentinelzap/internal/domain/ports/adapter"
	"sentinelzap/internal/domain/ports/repository"
)

// ---- In-memory chip repository ----

type memChipRepo struct {
	mu    sync.Mutex
	seq   int64
	chips map[int64]model.Chip
}

func newMemChipRepo() *memChipRepo {
	return &memChipRepo{chips: make(map[int64]model.Chip)}
}

var _ repository.ChipRepository = (*memChipRepo)(nil)

func (r *memChipRepo) Create(ctx context.Context, _ repository.Tx, chip *model.Chip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	chip.ID = r.seq
	r.chips[chip.ID] = *chip
	return nil
}

func (r *memChipRepo) Update(ctx context.Context, _ repository.Tx, chip *model.Chip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chips[chip.ID]; !ok {
		return domain.ErrNotFound
	}
	r.chips[chip.ID] = *chip
	return nil
}

func (r *memChipRepo) Delete(ctx context.Context, _ repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chips[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.chips, id)
	return nil
}

func (r *memChipRepo) FindByID(ctx context.Context, _ repository.Tx, id int64) (*model.Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chips[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (r *memChipRepo) FindBySessionID(ctx context.Context, _ repository.Tx, sessionID string) (*model.Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chips {
		if c.SessionID == sessionID {
			cp := c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memChipRepo) FindByUser(ctx context.Context, _ repository.Tx, userID int64) ([]*model.Chip, error) {
	return r.filter(func(c model.Chip) bool { return c.UserID == userID }), nil
}

func (r *memChipRepo) FindActiveByUser(ctx context.Context, _ repository.Tx, userID int64) ([]*model.Chip, error) {
	return r.filter(func(c model.Chip) bool {
		return c.UserID == userID && c.Status == model.ChipStatusActive
	}), nil
}

func (r *memChipRepo) FindConnectedByUser(ctx context.Context, _ repository.Tx, userID int64) ([]*model.Chip, error) {
	return r.filter(func(c model.Chip) bool { return c.UserID == userID && c.IsConnected }), nil
}

func (r *memChipRepo) FindByWarmupStatus(ctx context.Context, _ repository.Tx, status model.WarmupStatus) ([]*model.Chip, error) {
	return r.filter(func(c model.Chip) bool { return c.WarmupStatus == status }), nil
}

func (r *memChipRepo) FindAll(ctx context.Context, _ repository.Tx) ([]*model.Chip, error) {
	return r.filter(func(model.Chip) bool { return true }), nil
}

func (r *memChipRepo) ResetDailyCounters(ctx context.Context, _ repository.Tx) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.chips {
		if c.MessagesSentToday > 0 {
			c.MessagesSentToday = 0
			r.chips[id] = c
			n++
		}
	}
	return n, nil
}

func (r *memChipRepo) filter(keep func(model.Chip) bool) []*model.Chip {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Chip
	for i := int64(1); i <= r.seq; i++ {
		c, ok := r.chips[i]
		if !ok || !keep(c) {
			continue
		}
		cp := c
		out = append(out, &cp)
	}
	return out
}

// get returns the stored value directly, bypassing the repository API.
func (r *memChipRepo) get(id int64) model.Chip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chips[id]
}

// ---- In-memory warmup settings repository ----

type memSettingsRepo struct {
	mu       sync.Mutex
	seq      int64
	settings map[int64]model.WarmupSettings // by user id
}

func newMemSettingsRepo() *memSettingsRepo {
	return &memSettingsRepo{settings: make(map[int64]model.WarmupSettings)}
}

var _ repository.WarmupSettingsRepository = (*memSettingsRepo)(nil)

func (r *memSettingsRepo) FindByUser(ctx context.Context, _ repository.Tx, userID int64) (*model.WarmupSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (r *memSettingsRepo) Save(ctx context.Context, _ repository.Tx, s *model.WarmupSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.settings[s.UserID]; ok {
		s.ID = existing.ID
	} else {
		r.seq++
		s.ID = r.seq
	}
	r.settings[s.UserID] = *s
	return nil
}

// ---- In-memory history repositories ----

type memWarmupHistRepo struct {
	mu      sync.Mutex
	entries []model.WarmupHistory
}

func newMemWarmupHistRepo() *memWarmupHistRepo { return &memWarmupHistRepo{} }

var _ repository.WarmupHistoryRepository = (*memWarmupHistRepo)(nil)

func (r *memWarmupHistRepo) Append(ctx context.Context, _ repository.Tx, e *model.WarmupHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memWarmupHistRepo) FindByChip(ctx context.Context, _ repository.Tx, chipID int64, limit int) ([]*model.WarmupHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.WarmupHistory
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].ChipID == chipID {
			cp := r.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memWarmupHistRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type memMessageHistRepo struct {
	mu      sync.Mutex
	entries []model.MessageHistory
}

func newMemMessageHistRepo() *memMessageHistRepo { return &memMessageHistRepo{} }

var _ repository.MessageHistoryRepository = (*memMessageHistRepo)(nil)

func (r *memMessageHistRepo) Append(ctx context.Context, _ repository.Tx, e *model.MessageHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memMessageHistRepo) FindByChip(ctx context.Context, _ repository.Tx, chipID int64, limit int) ([]*model.MessageHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.MessageHistory
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].ChipID == chipID {
			cp := r.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock adapters (function fields, override per test) ----

type mockWhatsApp struct {
	mu        sync.Mutex
	sends     []string // "sessionID->phone"
	SendFn    func(ctx context.Context, sessionID, phoneNumber, message string) (adapter.SendResult, error)
	InitFn    func(ctx context.Context, sessionID string) (adapter.InitResult, error)
	ActiveFn  func(ctx context.Context, sessionID string) (bool, error)
	DisconnFn func(ctx context.Context, sessionID string) error
}

var _ adapter.WhatsAppAdapter = (*mockWhatsApp)(nil)

func (m *mockWhatsApp) SendMessage(ctx context.Context, sessionID, phoneNumber, message string) (adapter.SendResult, error) {
	m.mu.Lock()
	m.sends = append(m.sends, sessionID+"->"+phoneNumber)
	m.mu.Unlock()
	if m.SendFn != nil {
		return m.SendFn(ctx, sessionID, phoneNumber, message)
	}
	return adapter.SendResult{Success: true, MessageID: "mock-1"}, nil
}

func (m *mockWhatsApp) InitializeSession(ctx context.Context, sessionID string) (adapter.InitResult, error) {
	if m.InitFn != nil {
		return m.InitFn(ctx, sessionID)
	}
	return adapter.InitResult{Success: true}, nil
}

func (m *mockWhatsApp) IsSessionActive(ctx context.Context, sessionID string) (bool, error) {
	if m.ActiveFn != nil {
		return m.ActiveFn(ctx, sessionID)
	}
	return true, nil
}

func (m *mockWhatsApp) DisconnectSession(ctx context.Context, sessionID string) error {
	if m.DisconnFn != nil {
		return m.DisconnFn(ctx, sessionID)
	}
	return nil
}

func (m *mockWhatsApp) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

type mockNotifier struct {
	mu        sync.Mutex
	paused    []string
	nearLimit []int
}

var _ adapter.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) ChipPaused(ctx context.Context, chip *model.Chip, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = append(m.paused, reason)
	return nil
}

func (m *mockNotifier) ChipNearLimit(ctx context.Context, chip *model.Chip, usagePercent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nearLimit = append(m.nearLimit, usagePercent)
	return nil
}

type publishedEvent struct {
	userID  int64
	event   string
	payload any
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

var _ adapter.EventPublisher = (*mockPublisher)(nil)

func (m *mockPublisher) Publish(ctx context.Context, userID int64, event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{userID: userID, event: event, payload: payload})
	return nil
}

func (m *mockPublisher) byName(event string) []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedEvent
	for _, e := range m.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// ---- In-memory locker ----

type mockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMockLocker() *mockLocker { return &mockLocker{held: map[string]string{}} }

var _ Locker = (*mockLocker)(nil)

func (l *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return "", domain.ErrLockNotAcquired
	}
	l.held[key] = "token"
	return "token", nil
}

func (l *mockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// ---- In-memory session registry ----

type memRegistry struct {
	mu  sync.Mutex
	qrs map[string]string
}

func newMemRegistry() *memRegistry { return &memRegistry{qrs: map[string]string{}} }

var _ adapter.SessionRegistry = (*memRegistry)(nil)

func (r *memRegistry) SetQRCode(ctx context.Context, sessionID, qr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.qrs[sessionID] = qr
	return nil
}

func (r *memRegistry) GetQRCode(ctx context.Context, sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qr, ok := r.qrs[sessionID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return qr, nil
}

func (r *memRegistry) DeleteQRCode(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.qrs, sessionID)
	return nil
}

// ---- Shared fixtures ----

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
