package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/bountybase/engine/engine/task"
	"github.com/shopspring/decimal"
)

// StatsStore implements task.StatsStore as a single upsert per settlement.
type StatsStore struct {
	connection *Connection
	exec       *retry.Executor
	logger     log.Logger
}

func NewStatsStore(connection *Connection, logger log.Logger) *StatsStore {
	return &StatsStore{
		connection: connection,
		exec:       retry.Database(logger),
		logger:     logger,
	}
}

func (s *StatsStore) IncrementContributor(ctx context.Context, userID string, earned decimal.Decimal) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO contributor_stats (user_id, tasks_completed, total_earned)
			VALUES ($1, 1, $2)
			ON CONFLICT (user_id) DO UPDATE
			SET tasks_completed = contributor_stats.tasks_completed + 1,
				total_earned = contributor_stats.total_earned + EXCLUDED.total_earned`,
			userID, earned)

		return nil, err
	})

	return err
}

func (s *StatsStore) Contributor(ctx context.Context, userID string) (*task.ContributorStats, error) {
	result, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		stats := &task.ContributorStats{UserID: userID}

		err = db.QueryRowContext(ctx,
			`SELECT tasks_completed, total_earned FROM contributor_stats WHERE user_id = $1`, userID).
			Scan(&stats.TasksCompleted, &stats.TotalEarned)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				stats.TotalEarned = decimal.Zero
				return stats, nil
			}

			return nil, err
		}

		return stats, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*task.ContributorStats), nil
}
