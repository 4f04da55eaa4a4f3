package postgres

import (
	"context"
	"database/sql"
	"errors"

	constant "github.com/bountybase/engine/engine/constants"
	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/bountybase/engine/engine/wallet"
)

// WalletStore implements task.WalletStore. Secret material stays encrypted
// at rest; only the opaque reference is stored.
type WalletStore struct {
	connection *Connection
	exec       *retry.Executor
	logger     log.Logger
}

func NewWalletStore(connection *Connection, logger log.Logger) *WalletStore {
	return &WalletStore{
		connection: connection,
		exec:       retry.Database(logger),
		logger:     logger,
	}
}

func (s *WalletStore) Create(ctx context.Context, w *wallet.Wallet) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO wallet (id, public_address, secret_ref, owner_type, owner_id, kind, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			w.ID, w.PublicAddress, w.SecretRef, w.OwnerType, w.OwnerID, w.Kind, w.CreatedAt)

		return nil, err
	})

	return err
}

func (s *WalletStore) Get(ctx context.Context, ownerType wallet.OwnerType, ownerID string, kind wallet.Kind) (*wallet.Wallet, error) {
	result, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		var w wallet.Wallet

		err = db.QueryRowContext(ctx, `
			SELECT id, public_address, secret_ref, owner_type, owner_id, kind, created_at
			FROM wallet
			WHERE owner_type = $1 AND owner_id = $2 AND kind = $3`,
			ownerType, ownerID, kind).
			Scan(&w.ID, &w.PublicAddress, &w.SecretRef, &w.OwnerType, &w.OwnerID, &w.Kind, &w.CreatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, constant.ErrWalletNotFound
			}

			return nil, err
		}

		return &w, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*wallet.Wallet), nil
}
