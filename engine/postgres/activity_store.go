package postgres

import (
	"context"
	"errors"
	"time"

	constant "github.com/bountybase/engine/engine/constants"
	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/bountybase/engine/engine/task"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// ActivityStore implements task.ActivityStore. A partial unique index on
// (task_id, user_id) for APPLICATION rows enforces the one-open-application
// rule at the schema level.
type ActivityStore struct {
	connection *Connection
	exec       *retry.Executor
	logger     log.Logger
}

func NewActivityStore(connection *Connection, logger log.Logger) *ActivityStore {
	return &ActivityStore{
		connection: connection,
		exec:       retry.Database(logger),
		logger:     logger,
	}
}

func (s *ActivityStore) CreateApplication(ctx context.Context, taskID, userID string) (*task.Activity, error) {
	activity, err := s.insert(ctx, taskID, userID, task.ActivityApplication)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, constant.ErrAlreadyApplied
		}

		return nil, err
	}

	return activity, nil
}

func (s *ActivityStore) CreateSubmission(ctx context.Context, taskID, userID string) (*task.Activity, error) {
	return s.insert(ctx, taskID, userID, task.ActivitySubmission)
}

func (s *ActivityStore) HasApplication(ctx context.Context, taskID, userID string) (bool, error) {
	result, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		var exists bool
		err = db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM task_activity WHERE task_id = $1 AND user_id = $2 AND kind = $3)`,
			taskID, userID, task.ActivityApplication).Scan(&exists)

		return exists, err
	})
	if err != nil {
		return false, err
	}

	return result.(bool), nil
}

func (s *ActivityStore) CountApplications(ctx context.Context, taskID string) (int, error) {
	result, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		var count int
		err = db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM task_activity WHERE task_id = $1 AND kind = $2`,
			taskID, task.ActivityApplication).Scan(&count)

		return count, err
	})
	if err != nil {
		return 0, err
	}

	return result.(int), nil
}

func (s *ActivityStore) insert(ctx context.Context, taskID, userID string, kind task.ActivityKind) (*task.Activity, error) {
	activity := &task.Activity{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		UserID:    userID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.exec.Do(ctx, func(ctx context.Context) (any, error) {
		db, err := s.connection.DB(ctx)
		if err != nil {
			return nil, err
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO task_activity (id, task_id, user_id, kind, created_at) VALUES ($1, $2, $3, $4, $5)`,
			activity.ID, activity.TaskID, activity.UserID, activity.Kind, activity.CreatedAt)

		return nil, err
	})
	if err != nil {
		return nil, err
	}

	return activity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
