package postgres

import (
	"context"
	"database/sql"
	"errors"

	constant "github.com/bountybase/engine/engine/constants"
	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/bountybase/engine/engine/task"
	"github.com/shopspring/decimal"
)

// TaskStore implements task.Store. Status-guarded writes are single
// conditional UPDATEs, so a lost race surfaces as zero affected rows and
// maps back to the state error instead of silently overwriting.
type TaskStore struct {
	connection *Connection
	exec       *retry.Executor
	logger     log.Logger
}

func NewTaskStore(connection *Connection, logger log.Logger) *TaskStore {
	return &TaskStore{
		connection: connection,
		exec:       retry.Database(logger),
		logger:     logger,
	}
}

const taskColumns = `id, installation_id, creator_id, COALESCE(contributor_id, ''), repo, issue_number,
	bounty, status, timeline_value, timeline_unit, settled, comment_id, accepted_at, completed_at, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO task (id, installation_id, creator_id, contributor_id, repo, issue_number,
				bounty, status, timeline_value, timeline_unit, settled, comment_id, accepted_at, completed_at, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			t.ID, t.InstallationID, t.CreatorID, t.ContributorID, t.Repo, t.IssueNumber,
			t.Bounty, t.Status, t.Timeline.Value, t.Timeline.Unit, t.Settled, t.CommentID,
			t.AcceptedAt, t.CompletedAt, t.CreatedAt, t.UpdatedAt)

		return nil, err
	})

	return err
}

func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	result, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task WHERE id = $1`, id)

		return scanTask(row)
	})
	if err != nil {
		return nil, err
	}

	return result.(*task.Task), nil
}

func (s *TaskStore) Transition(ctx context.Context, update task.Transition) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		result, err := db.ExecContext(ctx, `
			UPDATE task
			SET status = $1,
				contributor_id = COALESCE(NULLIF($2, ''), contributor_id),
				accepted_at = COALESCE($3, accepted_at),
				completed_at = COALESCE($4, completed_at),
				settled = settled OR $5,
				updated_at = now()
			WHERE id = $6 AND status = $7`,
			update.To, update.ContributorID, update.AcceptedAt, update.CompletedAt, update.Settled,
			update.ID, update.From)
		if err != nil {
			return nil, err
		}

		return nil, s.guard(ctx, result, update.ID)
	})

	return err
}

func (s *TaskStore) UpdateBounty(ctx context.Context, id string, expected task.Status, bounty decimal.Decimal) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		result, err := db.ExecContext(ctx,
			`UPDATE task SET bounty = $1, updated_at = now() WHERE id = $2 AND status = $3`,
			bounty, id, expected)
		if err != nil {
			return nil, err
		}

		return nil, s.guard(ctx, result, id)
	})

	return err
}

func (s *TaskStore) UpdateTimeline(ctx context.Context, id string, timeline task.Timeline) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		result, err := db.ExecContext(ctx,
			`UPDATE task SET timeline_value = $1, timeline_unit = $2, updated_at = now() WHERE id = $3`,
			timeline.Value, timeline.Unit, id)
		if err != nil {
			return nil, err
		}

		return nil, affectedOr(result, constant.ErrTaskNotFound)
	})

	return err
}

func (s *TaskStore) SetCommentID(ctx context.Context, id string, commentID int64) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		result, err := db.ExecContext(ctx,
			`UPDATE task SET comment_id = $1, updated_at = now() WHERE id = $2`, commentID, id)
		if err != nil {
			return nil, err
		}

		return nil, affectedOr(result, constant.ErrTaskNotFound)
	})

	return err
}

func (s *TaskStore) Delete(ctx context.Context, id string, expected task.Status) error {
	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		result, err := db.ExecContext(ctx,
			`DELETE FROM task WHERE id = $1 AND status = $2 AND contributor_id IS NULL`, id, expected)
		if err != nil {
			return nil, err
		}

		return nil, s.guard(ctx, result, id)
	})

	return err
}

// guard maps a zero-row conditional write to the precise domain error: the
// row is either gone or no longer in the expected state.
func (s *TaskStore) guard(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected > 0 {
		return nil
	}

	db, err := s.connection.DB(ctx)
	if err != nil {
		return err
	}

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM task WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}

	if !exists {
		return constant.ErrTaskNotFound
	}

	return constant.ErrTaskState
}

func affectedOr(result sql.Result, missing error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return missing
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var t task.Task

	err := row.Scan(&t.ID, &t.InstallationID, &t.CreatorID, &t.ContributorID, &t.Repo, &t.IssueNumber,
		&t.Bounty, &t.Status, &t.Timeline.Value, &t.Timeline.Unit, &t.Settled, &t.CommentID,
		&t.AcceptedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, constant.ErrTaskNotFound
		}

		return nil, err
	}

	return &t, nil
}
