package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu          sync.RWMutex
	plans       map[string]PlanRecord
	validations map[string][]ValidationRecord
	quarantine  map[string]QuarantineRecord
	settings    map[string]string
	users       map[string]User
	tokens      map[string]Token
	jobs        map[string]ScheduledJob
	emailConfig *EmailConfig
	nextValID   uint
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		plans:       make(map[string]PlanRecord),
		validations: make(map[string][]ValidationRecord),
		quarantine:  make(map[string]QuarantineRecord),
		settings:    make(map[string]string),
		users:       make(map[string]User),
		tokens:      make(map[string]Token),
		jobs:        make(map[string]ScheduledJob),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Plans

func (m *MemoryStorage) ListPlans(ctx context.Context) ([]PlanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PlanRecord, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStorage) UpsertPlan(ctx context.Context, p PlanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *MemoryStorage) DeletePlan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, id)
	return nil
}

// Validation history

func (m *MemoryStorage) SaveValidation(ctx context.Context, v ValidationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextValID++
	v.ID = m.nextValID
	if v.CheckedAt.IsZero() {
		v.CheckedAt = time.Now()
	}
	m.validations[v.PlanID] = append(m.validations[v.PlanID], v)
	return nil
}

func (m *MemoryStorage) LatestValidation(ctx context.Context, planID string) (*ValidationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.validations[planID]
	if len(history) == 0 {
		return nil, nil
	}
	cp := history[len(history)-1]
	return &cp, nil
}

func (m *MemoryStorage) ListValidations(ctx context.Context, planID string, limit int) ([]ValidationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.validations[planID]
	out := make([]ValidationRecord, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Quarantine

func (m *MemoryStorage) GetQuarantine(ctx context.Context, planID string) (*QuarantineRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quarantine[planID]
	if !ok {
		return nil, nil
	}
	cp := q
	return &cp, nil
}

func (m *MemoryStorage) UpsertQuarantine(ctx context.Context, q QuarantineRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quarantine[q.PlanID] = q
	return nil
}

func (m *MemoryStorage) ResolveQuarantine(ctx context.Context, planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quarantine[planID]
	if !ok || q.Resolved {
		return nil
	}
	now := time.Now()
	q.Resolved = true
	q.ResolvedAt = &now
	m.quarantine[planID] = q
	return nil
}

func (m *MemoryStorage) ListQuarantine(ctx context.Context, includeResolved bool) ([]QuarantineRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuarantineRecord, 0, len(m.quarantine))
	for _, q := range m.quarantine {
		if !includeResolved && q.Resolved {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

func (m *MemoryStorage) CountOpenQuarantine(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, q := range m.quarantine {
		if !q.Resolved {
			n++
		}
	}
	return n, nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return nil
	}
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		now := time.Now()
		t.LastUsedAt = &now
		m.tokens[id] = t
	}
	return nil
}

// Access policies

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	// In-memory storage doesn't persist rules; the enforcer starts with
	// its default policies.
	return nil, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return nil
}

// Email configuration

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.emailConfig == nil {
		return nil, nil
	}
	cfg := *m.emailConfig
	return &cfg, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailConfig = &config
	return nil
}

// Worker bookkeeping

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	// Single instance always acquires.
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := 0
	if success {
		status = 1
	}
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

// ScheduledJobs returns recorded job rows. Test hook; not part of Storage.
func (m *MemoryStorage) ScheduledJobs() []ScheduledJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ScheduledJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out
}
