package orchestrator

import (
	"database/sql"
	"sync"
	"time"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/notify"
)

type stubClock struct {
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time                       { return c.now }
func (c *stubClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (c *stubClock) Sleep(d time.Duration)                {}

// memNotificationStore records saves so tests can assert what reached
// persistence.
type memNotificationStore struct {
	mu    sync.Mutex
	seq   int64
	saved []domain.NotificationRequest
}

func (m *memNotificationStore) Save(n *domain.NotificationRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	n.ID = m.seq
	m.saved = append(m.saved, *n)
	return m.seq, nil
}

func (m *memNotificationStore) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *memNotificationStore) last() domain.NotificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[len(m.saved)-1]
}

func (m *memNotificationStore) FindByID(id int64) (*domain.NotificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.saved {
		if m.saved[i].ID == id {
			cp := m.saved[i]
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memNotificationStore) FindByBusinessKey(key string) (*domain.NotificationRequest, error) {
	return nil, sql.ErrNoRows
}

func (m *memNotificationStore) FindDue(now time.Time, limit int) (*[]domain.NotificationRequest, error) {
	return &[]domain.NotificationRequest{}, nil
}

func (m *memNotificationStore) MarkQueued(id int64, now time.Time) (bool, error) { return false, nil }
func (m *memNotificationStore) MarkSent(id int64, externalID string, now time.Time) error {
	return nil
}
func (m *memNotificationStore) MarkFailedPermanent(id int64, reason string, retryCount int, now time.Time) error {
	return nil
}
func (m *memNotificationStore) ScheduleRetry(id int64, retryCount int, nextAttempt time.Time, reason string, now time.Time) error {
	return nil
}
func (m *memNotificationStore) Requeue(id int64, now time.Time) error            { return nil }
func (m *memNotificationStore) Defer(id int64, until time.Time, now time.Time) error { return nil }
func (m *memNotificationStore) Cancel(id int64, now time.Time) (bool, error)     { return true, nil }
func (m *memNotificationStore) Search(status, channel, recipientID string, limit, offset int) (*[]domain.NotificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.NotificationRequest, len(m.saved))
	copy(out, m.saved)
	return &out, nil
}
func (m *memNotificationStore) CountByStatus() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, n := range m.saved {
		counts[n.Status]++
	}
	return counts, nil
}

// memPreferenceStore keeps one preference record per recipient.
type memPreferenceStore struct {
	mu    sync.Mutex
	prefs map[string]*domain.DeliveryPreference
}

func newMemPreferenceStore() *memPreferenceStore {
	return &memPreferenceStore{prefs: make(map[string]*domain.DeliveryPreference)}
}

func (m *memPreferenceStore) FindOrCreate(recipientID string, now time.Time) (*domain.DeliveryPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prefs[recipientID]; ok {
		cp := *p
		return &cp, nil
	}
	p := domain.DefaultDeliveryPreference(recipientID, now)
	m.prefs[recipientID] = p
	cp := *p
	return &cp, nil
}

func (m *memPreferenceStore) Update(p *domain.DeliveryPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.prefs[p.RecipientID] = &cp
	return nil
}

type memLogStore struct {
	entries []domain.NotificationLogEntry
}

func (m *memLogStore) Append(e *domain.NotificationLogEntry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLogStore) FindByNotificationID(notificationID int64) (*[]domain.NotificationLogEntry, error) {
	var out []domain.NotificationLogEntry
	for _, e := range m.entries {
		if e.NotificationID == notificationID {
			out = append(out, e)
		}
	}
	return &out, nil
}

// memTemplateStore is a map-backed TemplateStore that counts saves.
type memTemplateStore struct {
	templates map[string]*domain.NotificationTemplate
	saves     int
}

func newMemTemplateStore(templates ...*domain.NotificationTemplate) *memTemplateStore {
	s := &memTemplateStore{templates: make(map[string]*domain.NotificationTemplate)}
	for _, t := range templates {
		s.templates[t.Name] = t
	}
	return s
}

func (m *memTemplateStore) FindByName(name string) (*domain.NotificationTemplate, error) {
	t, ok := m.templates[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return t, nil
}

func (m *memTemplateStore) Save(t *domain.NotificationTemplate) (int64, error) {
	m.saves++
	m.templates[t.Name] = t
	return int64(len(m.templates)), nil
}

type orchestratorFixture struct {
	orch          *Orchestrator
	notifications *memNotificationStore
	preferences   *memPreferenceStore
	templates     *memTemplateStore
	clock         *stubClock
}

func newOrchestratorFixture(templates ...*domain.NotificationTemplate) *orchestratorFixture {
	clock := newStubClock()
	notifications := &memNotificationStore{}
	preferences := newMemPreferenceStore()
	logs := &memLogStore{}
	store := newMemTemplateStore(templates...)
	queue := notify.NewDeliveryQueue(notifications, preferences, logs, notify.NewDispatcher(),
		clock, notify.QueueSettings{})
	orch := New(nil, nil, queue, notifications, preferences, logs, store, clock, 3)
	return &orchestratorFixture{
		orch:          orch,
		notifications: notifications,
		preferences:   preferences,
		templates:     store,
		clock:         clock,
	}
}

var _ core.Clock = (*stubClock)(nil)
var _ notify.NotificationRepo = (*memNotificationStore)(nil)
var _ notify.PreferenceRepo = (*memPreferenceStore)(nil)
var _ notify.LogRepo = (*memLogStore)(nil)
var _ TemplateStore = (*memTemplateStore)(nil)
