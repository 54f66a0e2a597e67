package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/database"
)

// RepositoryInterface defines the contract for entity map access
type RepositoryInterface interface {
	Lookup(ctx context.Context, q database.Queryer, tenantID int64, integration, entityType, externalID string) (*EntityMap, error)
	Record(ctx context.Context, q database.Queryer, m *EntityMap) error
}

// Repository provides PostgreSQL-backed entity map access.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new integration repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Lookup finds an existing mapping, nil when absent.
func (r *Repository) Lookup(ctx context.Context, q database.Queryer, tenantID int64, integration, entityType, externalID string) (*EntityMap, error) {
	var m EntityMap
	err := q.QueryRow(ctx, `
		SELECT id, tenant_id, integration, entity_type, external_id, internal_id, created_at
		FROM integration_entity_maps
		WHERE tenant_id = $1 AND integration = $2 AND entity_type = $3 AND external_id = $4
	`, tenantID, integration, entityType, externalID).Scan(
		&m.ID, &m.TenantID, &m.Integration, &m.EntityType, &m.ExternalID, &m.InternalID, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup entity map: %w", err)
	}
	return &m, nil
}

// Record inserts a mapping; a concurrent duplicate wins silently.
func (r *Repository) Record(ctx context.Context, q database.Queryer, m *EntityMap) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO integration_entity_maps (id, tenant_id, integration, entity_type, external_id, internal_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, integration, entity_type, external_id) DO NOTHING
	`, m.ID, m.TenantID, m.Integration, m.EntityType, m.ExternalID, m.InternalID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("record entity map: %w", err)
	}
	return nil
}
