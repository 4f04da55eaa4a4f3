package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/bountybase/engine/engine/transaction"
	"github.com/bountybase/engine/engine/wallet"
)

// TransactionStore implements task.TransactionStore. The log is append
// only; a replayed tx_hash is swallowed by the unique constraint, which is
// what makes ingestion idempotent.
type TransactionStore struct {
	connection *Connection
	exec       *retry.Executor
	logger     log.Logger
}

func NewTransactionStore(connection *Connection, logger log.Logger) *TransactionStore {
	return &TransactionStore{
		connection: connection,
		exec:       retry.Database(logger),
		logger:     logger,
	}
}

func (s *TransactionStore) Record(ctx context.Context, record *transaction.Record) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO transaction_record (id, tx_hash, category, amount, asset_code, owner_type, owner_id, task_id, done_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
			ON CONFLICT (tx_hash) DO NOTHING`,
			record.ID, record.TxHash, record.Category, record.Amount, record.AssetCode,
			record.OwnerType, record.OwnerID, record.TaskID, record.DoneAt)

		return nil, err
	})

	return err
}

func (s *TransactionStore) LastSeen(ctx context.Context, ownerType wallet.OwnerType, ownerID string, category transaction.Category) (string, error) {
	result, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		var txHash string

		err = db.QueryRowContext(ctx, `
			SELECT tx_hash FROM transaction_record
			WHERE owner_type = $1 AND owner_id = $2 AND category = $3
			ORDER BY done_at DESC
			LIMIT 1`,
			ownerType, ownerID, category).Scan(&txHash)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", nil
			}

			return nil, err
		}

		return txHash, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (s *TransactionStore) ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string) ([]*transaction.Record, error) {
	result, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		rows, err := db.QueryContext(ctx, `
			SELECT id, tx_hash, category, amount, asset_code, owner_type, owner_id, COALESCE(task_id::text, ''), done_at
			FROM transaction_record
			WHERE owner_type = $1 AND owner_id = $2
			ORDER BY done_at DESC`,
			ownerType, ownerID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var records []*transaction.Record

		for rows.Next() {
			var record transaction.Record

			err := rows.Scan(&record.ID, &record.TxHash, &record.Category, &record.Amount, &record.AssetCode,
				&record.OwnerType, &record.OwnerID, &record.TaskID, &record.DoneAt)
			if err != nil {
				return nil, err
			}

			records = append(records, &record)
		}

		return records, rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return result.([]*transaction.Record), nil
}
