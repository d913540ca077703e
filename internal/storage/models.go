package storage

import "time"

// PlanRecord is the stored form of an ingested plan: the canonical document
// payload plus the current classification outcome. The document column holds
// the full plan JSON so a record can be re-parsed and revalidated without
// the original upload.
type PlanRecord struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	RepName     string    `json:"rep_name" gorm:"column:rep_name"`
	ProductName string    `json:"product_name" gorm:"column:product_name"`
	TDSPName    string    `json:"tdsp_name,omitempty" gorm:"column:tdsp_name"`
	Document    []byte    `json:"document" gorm:"column:document"`
	EFLText     string    `json:"-" gorm:"column:efl_text"`
	Status      string    `json:"status" gorm:"column:status"`
	ReasonCode  string    `json:"reason_code,omitempty" gorm:"column:reason_code"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// ValidationRecord is one validation run for a plan. History is append-only;
// the latest row is the plan's current verdict.
type ValidationRecord struct {
	ID                   uint      `json:"-" gorm:"primaryKey;column:id"`
	PlanID               string    `json:"plan_id" gorm:"column:plan_id;index"`
	Status               string    `json:"status" gorm:"column:status"`
	SolveMode            string    `json:"solve_mode,omitempty" gorm:"column:solve_mode"`
	QueueReason          string    `json:"queue_reason,omitempty" gorm:"column:queue_reason"`
	ToleranceCentsPerKWh float64   `json:"tolerance_cents_per_kwh" gorm:"column:tolerance_cents_per_kwh"`
	Detail               []byte    `json:"detail,omitempty" gorm:"column:detail"`
	CheckedAt            time.Time `json:"checked_at" gorm:"column:checked_at"`
}

// QuarantineRecord tracks a plan pulled for manual review. One row per plan;
// repeat failures bump LastSeenAt and TimesSeen rather than adding rows.
type QuarantineRecord struct {
	PlanID      string     `json:"plan_id" gorm:"primaryKey;column:plan_id"`
	ReasonCode  string     `json:"reason_code" gorm:"column:reason_code"`
	Reason      string     `json:"reason" gorm:"column:reason"`
	FirstSeenAt time.Time  `json:"first_seen_at" gorm:"column:first_seen_at"`
	LastSeenAt  time.Time  `json:"last_seen_at" gorm:"column:last_seen_at"`
	TimesSeen   int        `json:"times_seen" gorm:"column:times_seen"`
	Resolved    bool       `json:"resolved" gorm:"column:resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" gorm:"column:resolved_at"`
}

// Setting is a key/value override row for runtime-tunable knobs.
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;column:key"`
	Value     string    `json:"value" gorm:"column:value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// ScheduledJob records the last run of a background job for operator visibility.
type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error,omitempty" gorm:"column:last_error"`
}

// User represents a registered user in the system.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	FirstName    string    `json:"first_name" gorm:"column:first_name"`
	LastName     string    `json:"last_name" gorm:"column:last_name"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"` // For Sendgrid
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	// AlertAddress receives quarantine notifications.
	AlertAddress string   `json:"alert_address,omitempty" gorm:"column:alert_address"`
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}
