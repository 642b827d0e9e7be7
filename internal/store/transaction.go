package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/money-manager/apiserver/types"
)

// TransactionRepository handles persistence for transactions. Every query
// is filtered by the owning user id.
type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByOwner returns every transaction owned by ownerID, most recently
// created first.
func (r *TransactionRepository) ListByOwner(ctx context.Context, ownerID int) ([]types.Transaction, error) {
	const query = `
		SELECT id, title, amount, type, date, created, last_updated, user_id
		FROM transactions
		WHERE user_id = $1
		ORDER BY created DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]types.Transaction, 0)
	for rows.Next() {
		var tx types.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.Title,
			&tx.Amount,
			&tx.Type,
			&tx.Date,
			&tx.Created,
			&tx.LastUpdated,
			&tx.UserID,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

// Get returns the transaction only when it is owned by ownerID. A record
// owned by someone else is indistinguishable from a missing one.
func (r *TransactionRepository) Get(ctx context.Context, ownerID int, id string) (types.Transaction, error) {
	const query = `
		SELECT id, title, amount, type, date, created, last_updated, user_id
		FROM transactions
		WHERE id = $1 AND user_id = $2`
	var tx types.Transaction
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&tx.ID,
		&tx.Title,
		&tx.Amount,
		&tx.Type,
		&tx.Date,
		&tx.Created,
		&tx.LastUpdated,
		&tx.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Transaction{}, ErrNotFound
		}
		return types.Transaction{}, err
	}
	return tx, nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	now := time.Now()
	tx.ID = uuid.NewString()
	tx.Created = now.UnixMilli()
	tx.LastUpdated = now
	if tx.Date.IsZero() {
		tx.Date = now
	}

	const query = `
		INSERT INTO transactions (id, title, amount, type, date, created, last_updated, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		tx.ID,
		tx.Title,
		tx.Amount,
		tx.Type,
		tx.Date,
		tx.Created,
		tx.LastUpdated,
		tx.UserID,
	); err != nil {
		return types.Transaction{}, err
	}
	return tx, nil
}

// Update persists title, amount, type and last_updated. The id, owner,
// date and created fields never change.
func (r *TransactionRepository) Update(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	tx.LastUpdated = time.Now()

	const query = `
		UPDATE transactions
		SET title = $1,
			amount = $2,
			type = $3,
			last_updated = $4
		WHERE id = $5 AND user_id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		tx.Title,
		tx.Amount,
		tx.Type,
		tx.LastUpdated,
		tx.ID,
		tx.UserID,
	)
	if err != nil {
		return types.Transaction{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Transaction{}, err
	}
	if affected == 0 {
		return types.Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (r *TransactionRepository) Delete(ctx context.Context, ownerID int, id string) error {
	const query = `DELETE FROM transactions WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
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

// DeleteAll removes every transaction owned by ownerID and reports how
// many were removed. Zero is a valid result, not an error.
func (r *TransactionRepository) DeleteAll(ctx context.Context, ownerID int) (int64, error) {
	const query = `DELETE FROM transactions WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
