// Package rulestore persists custom rule configurations.
package rulestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// Store provides CRUD access to custom rule configurations.
type Store interface {
	SaveRuleConfig(ctx context.Context, cfg *domain.RuleConfig) error
	GetRuleConfig(ctx context.Context, id string) (*domain.RuleConfig, error)
	ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error)
	ListEnabledRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error)
	DeleteRuleConfig(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// SQLStore implements Store using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// New creates a rule store based on configuration.
func New(cfg domain.RuleStoreConfig) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	store := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRuleConfig inserts or updates a rule configuration.
func (s *SQLStore) SaveRuleConfig(ctx context.Context, cfg *domain.RuleConfig) error {
	if cfg == nil || cfg.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}
	if cfg.Expression == "" {
		return fmt.Errorf("%w: rule expression is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	query := `
		INSERT INTO rule_configs (
			id, name, description, expression, score_delta, enabled,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			score_delta = excluded.score_delta,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		cfg.ID, cfg.Name, cfg.Description, cfg.Expression,
		cfg.ScoreDelta, boolToInt(cfg.Enabled),
		cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule config: %w", err)
	}
	return nil
}

// GetRuleConfig retrieves a rule configuration by id.
func (s *SQLStore) GetRuleConfig(ctx context.Context, id string) (*domain.RuleConfig, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, description, expression, score_delta, enabled,
		       created_at, updated_at
		FROM rule_configs
		WHERE id = ?
	`

	var cfg domain.RuleConfig
	var enabled int

	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(
		&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Expression,
		&cfg.ScoreDelta, &enabled, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	return &cfg, nil
}

// ListRuleConfigs returns every stored rule configuration.
func (s *SQLStore) ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	return s.list(ctx, false)
}

// ListEnabledRuleConfigs returns only configurations that participate in
// evaluation.
func (s *SQLStore) ListEnabledRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error) {
	return s.list(ctx, true)
}

func (s *SQLStore) list(ctx context.Context, enabledOnly bool) ([]*domain.RuleConfig, error) {
	query := `
		SELECT id, name, description, expression, score_delta, enabled,
		       created_at, updated_at
		FROM rule_configs
	`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		var cfg domain.RuleConfig
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description, &cfg.Expression,
			&cfg.ScoreDelta, &enabled, &cfg.CreatedAt, &cfg.UpdatedAt,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteRuleConfig removes a rule configuration.
func (s *SQLStore) DeleteRuleConfig(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM rule_configs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete rule config: %w", err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
