package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
)

// ---- clock ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- users ----

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func newUsers(us ...*domain.User) *memUsers {
	m := &memUsers{users: make(map[string]*domain.User)}
	for _, u := range us {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *memUsers) get(id string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.users[id]
	return &cp
}

func (m *memUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email != "" && u.Email == email })
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Username == username })
}

// ---- tokens ----

// memTokens mirrors the postgres repository: supersede on issue, row-locked consume.
type memTokens struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]*domain.Token // by secret hash
	users  *memUsers
}

func newTokens(users *memUsers) *memTokens {
	return &memTokens{tokens: make(map[string]*domain.Token), users: users}
}

func (m *memTokens) Issue(_ context.Context, t *domain.Token) (*domain.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[t.SecretHash]; ok {
		return nil, domain.ErrDuplicateSecret
	}
	for hash, old := range m.tokens {
		if old.UserID == t.UserID && old.Kind == t.Kind && !old.Used {
			delete(m.tokens, hash)
		}
	}
	m.seq++
	cp := *t
	cp.ID = fmt.Sprintf("tok-%d", m.seq)
	m.tokens[t.SecretHash] = &cp
	out := cp
	return &out, nil
}

func (m *memTokens) Consume(_ context.Context, hash string, kind domain.TokenKind, now time.Time, effect domain.TokenEffect) (*domain.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || t.Kind != kind {
		return nil, domain.ErrTokenNotFound
	}
	if err := t.Check(now); err != nil {
		return nil, err
	}
	t.Used = true
	at := now
	t.UsedAt = &at

	if m.users != nil {
		m.users.mu.Lock()
		u := m.users.users[t.UserID]
		if effect.MarkEmailVerified {
			u.EmailVerified = true
		}
		if effect.PasswordHash != "" {
			u.PasswordHash = effect.PasswordHash
		}
		m.users.mu.Unlock()
	}
	out := *t
	return &out, nil
}

func (m *memTokens) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for hash, t := range m.tokens {
		if t.ExpiresAt.Before(now) {
			delete(m.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// ---- tasks ----

type memTasks struct {
	mu      sync.Mutex
	seq     int
	tasks   map[string]*domain.Task
	owners  *memUsers
	listErr error
}

func newTasks(owners *memUsers, ts ...*domain.Task) *memTasks {
	m := &memTasks{tasks: make(map[string]*domain.Task), owners: owners}
	for _, t := range ts {
		cp := *t
		m.tasks[t.ID] = &cp
	}
	return m
}

func (m *memTasks) Create(_ context.Context, t *domain.Task) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *t
	cp.ID = fmt.Sprintf("task-%d", m.seq)
	m.tasks[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memTasks) Update(_ context.Context, t *domain.Task) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tasks[t.ID]
	if !ok || old.UserID != t.UserID {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	m.tasks[t.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memTasks) GetByID(_ context.Context, id, userID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	out := *t
	return &out, nil
}

func (m *memTasks) FindByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	out := *t
	return &out, nil
}

func (m *memTasks) ListByUser(_ context.Context, userID string) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.tasks {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTasks) Delete(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return domain.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) DeleteAllByUser(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, t := range m.tasks {
		if t.UserID == userID {
			ids = append(ids, id)
			delete(m.tasks, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memTasks) ListOutstanding(_ context.Context) ([]*domain.OutstandingTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.OutstandingTask
	for _, t := range m.tasks {
		if t.Status.Terminal() {
			continue
		}
		ot := &domain.OutstandingTask{Task: *t}
		if u, err := m.owners.FindByID(context.Background(), t.UserID); err == nil {
			ot.OwnerEmail = u.Email
			ot.OwnerFirstName = u.FirstName
		}
		out = append(out, ot)
	}
	return out, nil
}

// ---- reminders ----

type memReminders struct {
	mu     sync.Mutex
	seq    int
	rems   map[string]*domain.Reminder
	parked map[string]time.Time
}

func newReminders() *memReminders {
	return &memReminders{rems: make(map[string]*domain.Reminder), parked: make(map[string]time.Time)}
}

func (m *memReminders) CreateUnlessNear(_ context.Context, r *domain.Reminder, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.rems {
		if ex.UserID == r.UserID && ex.SourceKey == r.SourceKey &&
			!ex.DueAt.Before(r.DueAt.Add(-window)) && !ex.DueAt.After(r.DueAt.Add(window)) {
			return false, nil
		}
	}
	m.seq++
	r.ID = fmt.Sprintf("rem-%d", m.seq)
	cp := *r
	m.rems[r.ID] = &cp
	return true, nil
}

func (m *memReminders) DeleteBySourceKey(_ context.Context, userID, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.rems {
		if r.UserID == userID && r.SourceKey == key {
			delete(m.rems, id)
			n++
		}
	}
	return n, nil
}

func (m *memReminders) ClaimDue(_ context.Context, now time.Time, limit int) ([]*domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*domain.Reminder
	for _, r := range m.rems {
		if !r.Sent && r.ClaimedAt == nil && !r.DueAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]*domain.Reminder, 0, len(due))
	for _, r := range due {
		at := now
		r.ClaimedAt = &at
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memReminders) MarkSent(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rems[id]
	if !ok || r.Sent {
		return false, nil
	}
	r.Sent = true
	r.SentAt = &at
	r.ClaimedAt = nil
	return true, nil
}

func (m *memReminders) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rems[id]; ok && !r.Sent {
		r.ClaimedAt = nil
	}
	return nil
}

func (m *memReminders) Park(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rems[id]; ok && !r.Sent {
		m.parked[id] = at
	}
	return nil
}

func (m *memReminders) isParked(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.parked[id]
	return ok
}

func (m *memReminders) ReleaseStale(_ context.Context, cutoff time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rems {
		if n == limit {
			break
		}
		if _, parked := m.parked[r.ID]; parked {
			continue
		}
		if !r.Sent && r.ClaimedAt != nil && r.ClaimedAt.Before(cutoff) {
			r.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memReminders) all() []domain.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Reminder, 0, len(m.rems))
	for _, r := range m.rems {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---- notifier ----

type fakeNotifier struct {
	mu   sync.Mutex
	fail func(n domain.Notification) error
	sent []domain.Notification
}

func (f *fakeNotifier) Deliver(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(n); err != nil {
			return &domain.DeliveryError{Kind: n.Kind, To: n.To, Err: err}
		}
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) delivered() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Notification(nil), f.sent...)
}

// ---- marks ----

type mapMarks map[string]time.Time

func (m mapMarks) LastMark(key string) (time.Time, bool) {
	t, ok := m[key]
	return t, ok
}

func (m mapMarks) SetMark(key string, at time.Time) { m[key] = at }

func ptr[T any](v T) *T { return &v }
