// internal/invitations/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	apperrors "ideamarket/internal/common/errors"
	"ideamarket/internal/common/logger"
	"ideamarket/internal/models"
)

const (
	schemaSQL = `
CREATE TABLE IF NOT EXISTS invitations (
    id          TEXT PRIMARY KEY,
    project_id  TEXT NOT NULL,
    seller_id   TEXT NOT NULL,
    seq         BIGSERIAL,
    data        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS invitations_project_idx ON invitations (project_id, seq DESC);
CREATE INDEX IF NOT EXISTS invitations_seller_idx ON invitations (seller_id);`

	queryInsertInvite  = `INSERT INTO invitations (id, project_id, seller_id, data) VALUES ($1, $2, $3, $4)`
	queryGetInvite     = `SELECT data FROM invitations WHERE id = $1`
	queryLockInvite    = `SELECT data FROM invitations WHERE id = $1 FOR UPDATE`
	queryUpdateInvite  = `UPDATE invitations SET data = $2, updated_at = now() WHERE id = $1`
	queryListByProject = `SELECT data FROM invitations WHERE project_id = $1 ORDER BY seq DESC`
	queryListBySeller  = `SELECT data FROM invitations WHERE seller_id = $1 ORDER BY seq DESC`
)

// PostgresStore keeps invitations as JSONB rows. seq preserves insertion
// order so project lists read back newest first.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.Component(log, "postgres-store")}
}

// EnsureSchema creates the invitations table and its indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return apperrors.NewStoreError("migrate", err)
	}
	return nil
}

func (s *PostgresStore) Prepend(ctx context.Context, inv *models.Invitation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return apperrors.NewStoreError("prepend", err)
	}
	if _, err := s.db.ExecContext(ctx, queryInsertInvite, inv.ID, inv.ProjectID, inv.SellerID, data); err != nil {
		return apperrors.NewStoreError("prepend", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	return scanOne(s.db.QueryRowContext(ctx, queryGetInvite, id), id)
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*models.Invitation) error) (*models.Invitation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStoreError("update", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("Rollback failed", map[string]interface{}{"inviteId": id, "error": rbErr.Error()})
		}
	}()

	inv, err := scanOne(tx.QueryRowContext(ctx, queryLockInvite, id), id)
	if err != nil {
		return nil, err
	}
	if err := fn(inv); err != nil {
		return nil, err
	}

	data, err := json.Marshal(inv)
	if err != nil {
		return nil, apperrors.NewStoreError("encode", err)
	}
	if _, err := tx.ExecContext(ctx, queryUpdateInvite, id, data); err != nil {
		return nil, apperrors.NewStoreError("update", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewStoreError("commit", err)
	}
	return inv, nil
}

func (s *PostgresStore) ListByProject(ctx context.Context, projectID string) ([]*models.Invitation, error) {
	return s.list(ctx, queryListByProject, projectID)
}

func (s *PostgresStore) ListBySeller(ctx context.Context, sellerID string) ([]*models.Invitation, error) {
	return s.list(ctx, queryListBySeller, sellerID)
}

func (s *PostgresStore) list(ctx context.Context, query, arg string) ([]*models.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, apperrors.NewStoreError("list", err)
	}
	defer rows.Close()

	out := []*models.Invitation{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.NewStoreError("list", err)
		}
		var inv models.Invitation
		if err := json.Unmarshal(data, &inv); err != nil {
			return nil, apperrors.NewStoreError("decode", err)
		}
		out = append(out, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list", err)
	}
	return out, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func scanOne(row *sql.Row, id string) (*models.Invitation, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, apperrors.NewStoreError("get", err)
	}
	var inv models.Invitation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, apperrors.NewStoreError("decode", err)
	}
	return &inv, nil
}
