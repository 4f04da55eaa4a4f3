package task

import (
	"context"
	"time"

	"github.com/bountybase/engine/engine/transaction"
	"github.com/bountybase/engine/engine/wallet"
	"github.com/shopspring/decimal"
)

// Transition is one conditional status update. Stores apply it only when
// the row's status still equals From, closing the lost-update race between
// concurrent requests on the same task.
type Transition struct {
	ID            string
	From          Status
	To            Status
	ContributorID string
	AcceptedAt    *time.Time
	CompletedAt   *time.Time
	Settled       bool
}

// Store persists tasks. Conditional writes return constant.ErrTaskState
// when the status guard fails and constant.ErrTaskNotFound when the row is
// missing.
type Store interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Transition(ctx context.Context, update Transition) error
	UpdateBounty(ctx context.Context, id string, expected Status, bounty decimal.Decimal) error
	UpdateTimeline(ctx context.Context, id string, timeline Timeline) error
	SetCommentID(ctx context.Context, id string, commentID int64) error
	// Delete removes the row only while its status equals expected and no
	// contributor is assigned.
	Delete(ctx context.Context, id string, expected Status) error
}

// ActivityStore persists application and submission events.
type ActivityStore interface {
	// CreateApplication returns constant.ErrAlreadyApplied when the user
	// already holds an open application for the task.
	CreateApplication(ctx context.Context, taskID, userID string) (*Activity, error)
	HasApplication(ctx context.Context, taskID, userID string) (bool, error)
	CountApplications(ctx context.Context, taskID string) (int, error)
	CreateSubmission(ctx context.Context, taskID, userID string) (*Activity, error)
}

// WalletStore resolves owner wallets. Get returns constant.ErrWalletNotFound
// when no wallet is registered for the owner.
type WalletStore interface {
	Get(ctx context.Context, ownerType wallet.OwnerType, ownerID string, kind wallet.Kind) (*wallet.Wallet, error)
	Create(ctx context.Context, w *wallet.Wallet) error
}

// TransactionStore appends to the ledger side-effect log. Record is
// idempotent on TxHash; LastSeen returns the most recently recorded hash
// for the owner in the given category, or empty when none exists.
type TransactionStore interface {
	Record(ctx context.Context, record *transaction.Record) error
	LastSeen(ctx context.Context, ownerType wallet.OwnerType, ownerID string, category transaction.Category) (string, error)
	ListByOwner(ctx context.Context, ownerType wallet.OwnerType, ownerID string) ([]*transaction.Record, error)
}

// StatsStore maintains per-contributor settlement aggregates.
type StatsStore interface {
	IncrementContributor(ctx context.Context, userID string, earned decimal.Decimal) error
	Contributor(ctx context.Context, userID string) (*ContributorStats, error)
}
