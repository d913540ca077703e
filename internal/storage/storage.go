package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for plans, validation history, quarantine
// state, and operational records. Getters return (nil, nil) when the row
// does not exist.
type Storage interface {
	// Plans
	ListPlans(ctx context.Context) ([]PlanRecord, error)
	GetPlan(ctx context.Context, id string) (*PlanRecord, error)
	UpsertPlan(ctx context.Context, p PlanRecord) error
	DeletePlan(ctx context.Context, id string) error

	// Validation history
	SaveValidation(ctx context.Context, v ValidationRecord) error
	LatestValidation(ctx context.Context, planID string) (*ValidationRecord, error)
	ListValidations(ctx context.Context, planID string, limit int) ([]ValidationRecord, error)

	// Quarantine
	GetQuarantine(ctx context.Context, planID string) (*QuarantineRecord, error)
	UpsertQuarantine(ctx context.Context, q QuarantineRecord) error
	ResolveQuarantine(ctx context.Context, planID string) error
	ListQuarantine(ctx context.Context, includeResolved bool) ([]QuarantineRecord, error)
	CountOpenQuarantine(ctx context.Context) (int64, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, id string) (*Token, error)
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Access policies
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email configuration
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Worker bookkeeping
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
