package task

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusOpen              Status = "OPEN"
	StatusInProgress        Status = "IN_PROGRESS"
	StatusMarkedAsCompleted Status = "MARKED_AS_COMPLETED"
	StatusCompleted         Status = "COMPLETED"
)

// Task is one bounty-bearing unit of work tied to an issue in the
// installation's repository.
type Task struct {
	ID             string          `json:"id"`
	InstallationID string          `json:"installationId"`
	CreatorID      string          `json:"creatorId"`
	ContributorID  string          `json:"contributorId,omitempty"`
	Repo           string          `json:"repo"`
	IssueNumber    int             `json:"issueNumber"`
	Bounty         decimal.Decimal `json:"bounty"`
	Status         Status          `json:"status"`
	Timeline       Timeline        `json:"timeline"`
	Settled        bool            `json:"settled"`
	CommentID      int64           `json:"-"`
	AcceptedAt     *time.Time      `json:"acceptedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ActivityKind distinguishes task activity events.
type ActivityKind string

const (
	ActivityApplication ActivityKind = "APPLICATION"
	ActivitySubmission  ActivityKind = "SUBMISSION"
)

// Activity is one application or completion-submission event on a task.
// At most one application per (task, user) pair exists; submissions may
// repeat while the task still accepts them.
type Activity struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"taskId"`
	UserID    string       `json:"userId"`
	Kind      ActivityKind `json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ContributorStats is the per-user settlement aggregate.
type ContributorStats struct {
	UserID         string          `json:"userId"`
	TasksCompleted int             `json:"tasksCompleted"`
	TotalEarned    decimal.Decimal `json:"totalEarned"`
}
