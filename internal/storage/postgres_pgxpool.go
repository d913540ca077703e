package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watthive/eflengine/internal/metrics"
)

// PostgresPoolStorage implements Storage on a pgx connection pool. Table
// names and columns match the gorm backend so both can serve the same
// database.
type PostgresPoolStorage struct {
	pool *pgxpool.Pool

	lockMu    sync.Mutex
	lockConns map[int64]*pgxpool.Conn
}

func OpenPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStorage, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/eflengine?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStorage{
		pool:      pool,
		lockConns: make(map[int64]*pgxpool.Conn),
	}, nil
}

func (s *PostgresPoolStorage) Close() error {
	s.lockMu.Lock()
	for key, conn := range s.lockConns {
		conn.Release()
		delete(s.lockConns, key)
	}
	s.lockMu.Unlock()
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStorage) Ping(ctx context.Context) error {
	stat := s.pool.Stat()
	metrics.UpdateDBPoolMetrics("postgrespool",
		float64(stat.TotalConns()), float64(stat.IdleConns()), float64(stat.AcquiredConns()))
	return s.pool.Ping(ctx)
}

func (s *PostgresPoolStorage) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plan_records (
			id TEXT PRIMARY KEY,
			rep_name TEXT NOT NULL DEFAULT '',
			product_name TEXT NOT NULL DEFAULT '',
			tdsp_name TEXT NOT NULL DEFAULT '',
			document BYTEA,
			efl_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			reason_code TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS validation_records (
			id BIGSERIAL PRIMARY KEY,
			plan_id TEXT NOT NULL,
			status TEXT NOT NULL,
			solve_mode TEXT NOT NULL DEFAULT '',
			queue_reason TEXT NOT NULL DEFAULT '',
			tolerance_cents_per_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
			detail BYTEA,
			checked_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_validation_records_plan_id ON validation_records (plan_id);`,
		`CREATE TABLE IF NOT EXISTS quarantine_records (
			plan_id TEXT PRIMARY KEY,
			reason_code TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			times_seen INTEGER NOT NULL DEFAULT 0,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_jobs (
			name TEXT PRIMARY KEY,
			last_run_at TIMESTAMPTZ NOT NULL,
			last_duration_ms BIGINT NOT NULL DEFAULT 0,
			last_success INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			token_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			last_used_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS casbin_rules (
			id BIGSERIAL PRIMARY KEY,
			ptype TEXT NOT NULL DEFAULT '',
			v0 TEXT NOT NULL DEFAULT '',
			v1 TEXT NOT NULL DEFAULT '',
			v2 TEXT NOT NULL DEFAULT '',
			v3 TEXT NOT NULL DEFAULT '',
			v4 TEXT NOT NULL DEFAULT '',
			v5 TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS email_configs (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL DEFAULT '',
			host TEXT NOT NULL DEFAULT '',
			port INTEGER NOT NULL DEFAULT 0,
			username TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			from_address TEXT NOT NULL DEFAULT '',
			from_name TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '',
			encryption TEXT NOT NULL DEFAULT '',
			alert_address TEXT NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Plans

func (s *PostgresPoolStorage) ListPlans(ctx context.Context) ([]PlanRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rep_name, product_name, tdsp_name, document, efl_text, status, reason_code, created_at, updated_at
		FROM plan_records ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlanRecord
	for rows.Next() {
		var p PlanRecord
		if err := rows.Scan(&p.ID, &p.RepName, &p.ProductName, &p.TDSPName, &p.Document, &p.EFLText, &p.Status, &p.ReasonCode, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, rep_name, product_name, tdsp_name, document, efl_text, status, reason_code, created_at, updated_at
		FROM plan_records WHERE id=$1`, id)
	var p PlanRecord
	err := row.Scan(&p.ID, &p.RepName, &p.ProductName, &p.TDSPName, &p.Document, &p.EFLText, &p.Status, &p.ReasonCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *PostgresPoolStorage) UpsertPlan(ctx context.Context, p PlanRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO plan_records (id, rep_name, product_name, tdsp_name, document, efl_text, status, reason_code, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			rep_name=EXCLUDED.rep_name,
			product_name=EXCLUDED.product_name,
			tdsp_name=EXCLUDED.tdsp_name,
			document=EXCLUDED.document,
			efl_text=EXCLUDED.efl_text,
			status=EXCLUDED.status,
			reason_code=EXCLUDED.reason_code,
			updated_at=EXCLUDED.updated_at
	`, p.ID, p.RepName, p.ProductName, p.TDSPName, p.Document, p.EFLText, p.Status, p.ReasonCode, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) DeletePlan(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM plan_records WHERE id=$1`, id)
	return err
}

// Validation history

func (s *PostgresPoolStorage) SaveValidation(ctx context.Context, v ValidationRecord) error {
	if v.CheckedAt.IsZero() {
		v.CheckedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO validation_records (plan_id, status, solve_mode, queue_reason, tolerance_cents_per_kwh, detail, checked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, v.PlanID, v.Status, v.SolveMode, v.QueueReason, v.ToleranceCentsPerKWh, v.Detail, v.CheckedAt)
	return err
}

func (s *PostgresPoolStorage) LatestValidation(ctx context.Context, planID string) (*ValidationRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, plan_id, status, solve_mode, queue_reason, tolerance_cents_per_kwh, detail, checked_at
		FROM validation_records WHERE plan_id=$1
		ORDER BY checked_at DESC, id DESC LIMIT 1`, planID)
	var v ValidationRecord
	err := row.Scan(&v.ID, &v.PlanID, &v.Status, &v.SolveMode, &v.QueueReason, &v.ToleranceCentsPerKWh, &v.Detail, &v.CheckedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (s *PostgresPoolStorage) ListValidations(ctx context.Context, planID string, limit int) ([]ValidationRecord, error) {
	q := `
		SELECT id, plan_id, status, solve_mode, queue_reason, tolerance_cents_per_kwh, detail, checked_at
		FROM validation_records WHERE plan_id=$1
		ORDER BY checked_at DESC, id DESC`
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = s.pool.Query(ctx, q+` LIMIT $2`, planID, limit)
	} else {
		rows, err = s.pool.Query(ctx, q, planID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValidationRecord
	for rows.Next() {
		var v ValidationRecord
		if err := rows.Scan(&v.ID, &v.PlanID, &v.Status, &v.SolveMode, &v.QueueReason, &v.ToleranceCentsPerKWh, &v.Detail, &v.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Quarantine

func (s *PostgresPoolStorage) GetQuarantine(ctx context.Context, planID string) (*QuarantineRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT plan_id, reason_code, reason, first_seen_at, last_seen_at, times_seen, resolved, resolved_at
		FROM quarantine_records WHERE plan_id=$1`, planID)
	var q QuarantineRecord
	err := row.Scan(&q.PlanID, &q.ReasonCode, &q.Reason, &q.FirstSeenAt, &q.LastSeenAt, &q.TimesSeen, &q.Resolved, &q.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

func (s *PostgresPoolStorage) UpsertQuarantine(ctx context.Context, q QuarantineRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quarantine_records (plan_id, reason_code, reason, first_seen_at, last_seen_at, times_seen, resolved, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (plan_id) DO UPDATE SET
			reason_code=EXCLUDED.reason_code,
			reason=EXCLUDED.reason,
			first_seen_at=EXCLUDED.first_seen_at,
			last_seen_at=EXCLUDED.last_seen_at,
			times_seen=EXCLUDED.times_seen,
			resolved=EXCLUDED.resolved,
			resolved_at=EXCLUDED.resolved_at
	`, q.PlanID, q.ReasonCode, q.Reason, q.FirstSeenAt, q.LastSeenAt, q.TimesSeen, q.Resolved, q.ResolvedAt)
	return err
}

func (s *PostgresPoolStorage) ResolveQuarantine(ctx context.Context, planID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE quarantine_records SET resolved=TRUE, resolved_at=NOW()
		WHERE plan_id=$1 AND resolved=FALSE`, planID)
	return err
}

func (s *PostgresPoolStorage) ListQuarantine(ctx context.Context, includeResolved bool) ([]QuarantineRecord, error) {
	q := `
		SELECT plan_id, reason_code, reason, first_seen_at, last_seen_at, times_seen, resolved, resolved_at
		FROM quarantine_records`
	if !includeResolved {
		q += ` WHERE resolved=FALSE`
	}
	q += ` ORDER BY last_seen_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuarantineRecord
	for rows.Next() {
		var rec QuarantineRecord
		if err := rows.Scan(&rec.PlanID, &rec.ReasonCode, &rec.Reason, &rec.FirstSeenAt, &rec.LastSeenAt, &rec.TimesSeen, &rec.Resolved, &rec.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) CountOpenQuarantine(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quarantine_records WHERE resolved=FALSE`).Scan(&n)
	return n, err
}

// Settings

func (s *PostgresPoolStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *PostgresPoolStorage) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1,$2,NOW())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
	`, key, value)
	return err
}

// Users

func (s *PostgresPoolStorage) CreateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, user.ID, user.Username, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *PostgresPoolStorage) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresPoolStorage) GetUser(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE id=$1`, id))
}

func (s *PostgresPoolStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE username=$1`, username))
}

func (s *PostgresPoolStorage) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE email=$1`, email))
}

func (s *PostgresPoolStorage) UpdateUser(ctx context.Context, user User) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET username=$2, first_name=$3, last_name=$4, email=$5, password_hash=$6, role=$7, updated_at=$8
		WHERE id=$1
	`, user.ID, user.Username, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role, time.Now())
	return err
}

func (s *PostgresPoolStorage) DeleteUser(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Tokens

func (s *PostgresPoolStorage) CreateToken(ctx context.Context, token Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, user_id, name, token_hash, role, created_at, expires_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, token.ID, token.UserID, token.Name, token.TokenHash, token.Role, token.CreatedAt, token.ExpiresAt, token.LastUsedAt)
	return err
}

func (s *PostgresPoolStorage) scanToken(row pgx.Row) (*Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStorage) GetToken(ctx context.Context, id string) (*Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at
		FROM tokens WHERE id=$1`, id))
}

func (s *PostgresPoolStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	return s.scanToken(s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at
		FROM tokens WHERE token_hash=$1`, hash))
}

func (s *PostgresPoolStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, token_hash, role, created_at, expires_at, last_used_at
		FROM tokens WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) DeleteToken(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE id=$1`, id)
	return err
}

func (s *PostgresPoolStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET last_used_at=NOW() WHERE id=$1`, id)
	return err
}

// Access policies

func (s *PostgresPoolStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, ptype, v0, v1, v2, v3, v4, v5 FROM casbin_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CasbinRule
	for rows.Next() {
		var r CasbinRule
		if err := rows.Scan(&r.ID, &r.PType, &r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO casbin_rules (ptype, v0, v1, v2, v3, v4, v5) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5)
	return err
}

func (s *PostgresPoolStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM casbin_rules WHERE ptype=$1 AND v0=$2 AND v1=$3 AND v2=$4 AND v3=$5 AND v4=$6 AND v5=$7
	`, rule.PType, rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5)
	return err
}

// Email configuration

func (s *PostgresPoolStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider, host, port, username, password, from_address, from_name, api_key, encryption, alert_address, enabled, created_at, updated_at
		FROM email_configs LIMIT 1`)
	var c EmailConfig
	err := row.Scan(&c.ID, &c.Provider, &c.Host, &c.Port, &c.Username, &c.Password, &c.FromAddress, &c.FromName, &c.APIKey, &c.Encryption, &c.AlertAddress, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresPoolStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO email_configs (id, provider, host, port, username, password, from_address, from_name, api_key, encryption, alert_address, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
		ON CONFLICT (id) DO UPDATE SET
			provider=EXCLUDED.provider,
			host=EXCLUDED.host,
			port=EXCLUDED.port,
			username=EXCLUDED.username,
			password=EXCLUDED.password,
			from_address=EXCLUDED.from_address,
			from_name=EXCLUDED.from_name,
			api_key=EXCLUDED.api_key,
			encryption=EXCLUDED.encryption,
			alert_address=EXCLUDED.alert_address,
			enabled=EXCLUDED.enabled,
			updated_at=NOW()
	`, config.ID, config.Provider, config.Host, config.Port, config.Username, config.Password, config.FromAddress, config.FromName, config.APIKey, config.Encryption, config.AlertAddress, config.Enabled)
	return err
}

// Worker bookkeeping

// Advisory locks are session-scoped in postgres. The lock's connection is
// pinned out of the pool until release so acquire and unlock land on the
// same session.
func (s *PostgresPoolStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	s.lockMu.Lock()
	s.lockConns[key] = conn
	s.lockMu.Unlock()
	return true, nil
}

func (s *PostgresPoolStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	s.lockMu.Lock()
	conn, ok := s.lockConns[key]
	delete(s.lockConns, key)
	s.lockMu.Unlock()
	if !ok {
		return false, nil
	}
	defer conn.Release()
	var released bool
	err := conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&released)
	return released, err
}

func (s *PostgresPoolStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_jobs (name, last_run_at, last_duration_ms, last_success, last_error)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (name) DO UPDATE SET
			last_run_at=EXCLUDED.last_run_at,
			last_duration_ms=EXCLUDED.last_duration_ms,
			last_success=EXCLUDED.last_success,
			last_error=EXCLUDED.last_error
	`, name, started, dur.Milliseconds(), status, errMsg)
	return err
}
