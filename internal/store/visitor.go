package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// VisitorRepository handles persistence for visitor profiles.
type VisitorRepository struct {
	db *sql.DB
}

func NewVisitorRepository(db *sql.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

const visitorColumns = `id, account_id, name, phone, created_at`

func scanVisitor(row *sql.Row) (types.Visitor, error) {
	var visitor types.Visitor
	err := row.Scan(
		&visitor.ID,
		&visitor.AccountID,
		&visitor.Name,
		&visitor.Phone,
		&visitor.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Visitor{}, ErrNotFound
		}
		return types.Visitor{}, err
	}
	return visitor, nil
}

func (r *VisitorRepository) GetByID(ctx context.Context, id string) (types.Visitor, error) {
	const query = `
		SELECT ` + visitorColumns + `
		FROM visitors
		WHERE id = $1`
	return scanVisitor(r.db.QueryRowContext(ctx, query, id))
}

func (r *VisitorRepository) GetByAccountID(ctx context.Context, accountID string) (types.Visitor, error) {
	const query = `
		SELECT ` + visitorColumns + `
		FROM visitors
		WHERE account_id = $1`
	return scanVisitor(r.db.QueryRowContext(ctx, query, accountID))
}

func (r *VisitorRepository) Create(ctx context.Context, visitor types.Visitor) (types.Visitor, error) {
	visitor.ID = uuid.NewString()
	visitor.CreatedAt = time.Now()

	const query = `
		INSERT INTO visitors (id, account_id, name, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		visitor.ID,
		visitor.AccountID,
		visitor.Name,
		visitor.Phone,
		visitor.CreatedAt,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.Visitor{}, ErrConflict
		}
		return types.Visitor{}, err
	}
	return visitor, nil
}

func (r *VisitorRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM visitors WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
