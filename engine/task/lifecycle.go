package task

import (
	"context"
	"fmt"
	"time"

	"github.com/bountybase/engine/engine"
	"github.com/bountybase/engine/engine/circuitbreaker"
	constant "github.com/bountybase/engine/engine/constants"
	"github.com/bountybase/engine/engine/escrow"
	"github.com/bountybase/engine/engine/ledger"
	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/bountybase/engine/engine/transaction"
	"github.com/bountybase/engine/engine/vcs"
	"github.com/bountybase/engine/engine/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	entityTask = "Task"

	bountyLabel = "bounty"
)

// FundMover is the slice of the escrow orchestrator the lifecycle consumes.
// *escrow.Orchestrator implements it.
type FundMover interface {
	Balance(ctx context.Context, address string, asset ledger.Asset) (decimal.Decimal, error)
	HasAssetSupport(ctx context.Context, address string, asset ledger.Asset) (bool, error)
	EstablishAssetSupport(ctx context.Context, source wallet.FundSource, asset ledger.Asset, sponsor wallet.FundSource) (string, error)
	Transfer(ctx context.Context, from wallet.FundSource, toAddress string, sendAsset, receiveAsset ledger.Asset, amount decimal.Decimal) (string, error)
	TransferViaSponsor(ctx context.Context, sponsor, from wallet.FundSource, toAddress string, sendAsset, receiveAsset ledger.Asset, amount decimal.Decimal) (escrow.SponsoredTransfer, error)
	IncomingPayments(ctx context.Context, address string, asset ledger.Asset, sinceTxHash string) ([]ledger.Payment, error)
}

// Dependencies wires a Service.
type Dependencies struct {
	Tasks        Store
	Activities   ActivityStore
	Wallets      WalletStore
	Transactions TransactionStore
	Stats        StatsStore
	Funds        FundMover
	Collaborator vcs.Collaborator
	Breakers     circuitbreaker.Manager
	BountyAsset  ledger.Asset
	Logger       log.Logger
}

// Service drives the task state machine. Every fund-moving transition
// follows the same shape: guard, move funds, record the transaction,
// conditionally update the row, then best-effort issue annotation.
type Service struct {
	tasks        Store
	activities   ActivityStore
	wallets      WalletStore
	transactions TransactionStore
	stats        StatsStore
	funds        FundMover
	collab       vcs.Collaborator
	vcsExec      *retry.Executor
	bountyAsset  ledger.Asset
	logger       log.Logger

	now   func() time.Time
	newID func() string
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Service{
		tasks:        deps.Tasks,
		activities:   deps.Activities,
		wallets:      deps.Wallets,
		transactions: deps.Transactions,
		stats:        deps.Stats,
		funds:        deps.Funds,
		collab:       deps.Collaborator,
		vcsExec:      retry.VersionControl(deps.Breakers, logger),
		bountyAsset:  deps.BountyAsset,
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// CreateTaskRequest carries the fields needed to open a bounty task.
type CreateTaskRequest struct {
	InstallationID string
	CreatorID      string
	Repo           string
	IssueNumber    int
	Bounty         decimal.Decimal
	TimelineValue  decimal.Decimal
	TimelineUnit   TimelineUnit
}

// Create opens a task: it verifies the payer balance, moves the bounty into
// escrow, and only then inserts the task row. The fund movement is never
// rolled back; failures past it downgrade the outcome instead.
func (s *Service) Create(ctx context.Context, req CreateTaskRequest) Outcome {
	if req.InstallationID == "" || req.CreatorID == "" || req.Repo == "" || req.IssueNumber <= 0 || !req.Bounty.IsPositive() {
		return failed(engine.BusinessError(constant.ErrInvalidInput, entityTask))
	}

	timeline, err := NewTimeline(req.TimelineValue, req.TimelineUnit)
	if err != nil {
		return failed(engine.BusinessError(err, entityTask))
	}

	payer, escrowWallet, err := s.installationWallets(ctx, req.InstallationID)
	if err != nil {
		return failed(err)
	}

	balance, err := s.funds.Balance(ctx, payer.PublicAddress, s.bountyAsset)
	if err != nil {
		return failed(err)
	}

	if balance.LessThan(req.Bounty) {
		return failed(engine.BusinessError(constant.ErrInsufficientBalance, entityTask))
	}

	if err := s.ensureAssetSupport(ctx, escrowWallet, payer); err != nil {
		return failed(err)
	}

	txHash, err := s.funds.Transfer(ctx, payer.Source(), escrowWallet.PublicAddress, s.bountyAsset, s.bountyAsset, req.Bounty)
	if err != nil {
		return failed(err)
	}

	createdAt := s.now().UTC()
	created := &Task{
		ID:             s.newID(),
		InstallationID: req.InstallationID,
		CreatorID:      req.CreatorID,
		Repo:           req.Repo,
		IssueNumber:    req.IssueNumber,
		Bounty:         req.Bounty,
		Status:         StatusOpen,
		Timeline:       timeline,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}

	if err := s.tasks.Create(ctx, created); err != nil {
		s.logger.Errorf("task insert failed after escrow funding, reconcile tx %s: %v", txHash, err)
		return failed(err)
	}

	if err := s.record(ctx, txHash, transaction.CategoryBounty, req.Bounty, wallet.OwnerInstallation, req.InstallationID, created.ID); err != nil {
		return partial(created, txHash, "task created; transaction record failed", err)
	}

	if err := s.annotateCreated(ctx, created); err != nil {
		return partial(created, txHash, "task created; issue annotation failed", err)
	}

	return completed(created, txHash)
}

// Apply files one open application for the user. Duplicates are rejected.
func (s *Service) Apply(ctx context.Context, taskID, userID string) (*Activity, error) {
	t, err := s.get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if t.Status != StatusOpen {
		return nil, engine.BusinessError(constant.ErrTaskState, entityTask)
	}

	activity, err := s.activities.CreateApplication(ctx, taskID, userID)
	if err != nil {
		return nil, engine.BusinessError(err, entityTask)
	}

	return activity, nil
}

// Accept assigns an applicant as the task's contributor and moves the task
// to IN_PROGRESS.
func (s *Service) Accept(ctx context.Context, taskID, creatorID, contributorID string) Outcome {
	t, err := s.get(ctx, taskID)
	if err != nil {
		return failed(err)
	}

	if t.CreatorID != creatorID {
		return failed(engine.BusinessError(constant.ErrNotTaskCreator, entityTask))
	}

	if t.Status != StatusOpen {
		return failed(engine.BusinessError(constant.ErrTaskState, entityTask))
	}

	applied, err := s.activities.HasApplication(ctx, taskID, contributorID)
	if err != nil {
		return failed(err)
	}

	if !applied {
		return failed(engine.BusinessError(constant.ErrNoApplication, entityTask))
	}

	acceptedAt := s.now().UTC()

	err = s.tasks.Transition(ctx, Transition{
		ID:            taskID,
		From:          StatusOpen,
		To:            StatusInProgress,
		ContributorID: contributorID,
		AcceptedAt:    &acceptedAt,
	})
	if err != nil {
		return failed(engine.BusinessError(err, entityTask))
	}

	t.Status = StatusInProgress
	t.ContributorID = contributorID
	t.AcceptedAt = &acceptedAt

	if err := s.comment(ctx, t, fmt.Sprintf("Contributor assigned. Work is due in %s %s.", t.Timeline.Value, t.Timeline.Unit)); err != nil {
		return partial(t, "", "contributor accepted; issue annotation failed", err)
	}

	return completed(t, "")
}

// UpdateBounty changes the escrowed amount while the task is still OPEN and
// unapplied-for. A raise pulls the difference from the payer; a cut returns
// it.
func (s *Service) UpdateBounty(ctx context.Context, taskID, creatorID string, bounty decimal.Decimal) Outcome {
	if !bounty.IsPositive() {
		return failed(engine.BusinessError(constant.ErrInvalidInput, entityTask))
	}

	t, err := s.get(ctx, taskID)
	if err != nil {
		return failed(err)
	}

	if t.CreatorID != creatorID {
		return failed(engine.BusinessError(constant.ErrNotTaskCreator, entityTask))
	}

	if t.Status != StatusOpen {
		return failed(engine.BusinessError(constant.ErrTaskState, entityTask))
	}

	applications, err := s.activities.CountApplications(ctx, taskID)
	if err != nil {
		return failed(err)
	}

	if applications > 0 || t.ContributorID != "" {
		return failed(engine.BusinessError(constant.ErrBountyLocked, entityTask))
	}

	delta := bounty.Sub(t.Bounty)
	if delta.IsZero() {
		return completed(t, "")
	}

	payer, escrowWallet, err := s.installationWallets(ctx, t.InstallationID)
	if err != nil {
		return failed(err)
	}

	var (
		txHash   string
		category transaction.Category
	)

	if delta.IsPositive() {
		balance, err := s.funds.Balance(ctx, payer.PublicAddress, s.bountyAsset)
		if err != nil {
			return failed(err)
		}

		if balance.LessThan(delta) {
			return failed(engine.BusinessError(constant.ErrInsufficientBalance, entityTask))
		}

		txHash, err = s.funds.Transfer(ctx, payer.Source(), escrowWallet.PublicAddress, s.bountyAsset, s.bountyAsset, delta)
		if err != nil {
			return failed(err)
		}

		category = transaction.CategoryBounty
	} else {
		txHash, err = s.funds.Transfer(ctx, escrowWallet.Source(), payer.PublicAddress, s.bountyAsset, s.bountyAsset, delta.Neg())
		if err != nil {
			return failed(err)
		}

		category = transaction.CategoryWithdrawal
	}

	recordErr := s.record(ctx, txHash, category, delta.Abs(), wallet.OwnerInstallation, t.InstallationID, t.ID)

	if err := s.tasks.UpdateBounty(ctx, taskID, StatusOpen, bounty); err != nil {
		s.logger.Errorf("bounty update failed after fund movement, reconcile tx %s: %v", txHash, err)
		return failed(engine.BusinessError(err, entityTask))
	}

	t.Bounty = bounty

	if recordErr != nil {
		return partial(t, txHash, "bounty updated; transaction record failed", recordErr)
	}

	if err := s.comment(ctx, t, fmt.Sprintf("Bounty updated to %s %s.", bounty, s.bountyAsset.Code)); err != nil {
		return partial(t, txHash, "bounty updated; issue annotation failed", err)
	}

	return completed(t, txHash)
}

// ExtendTimeline adds delta to the task timeline, folding mixed units. It
// never changes status.
func (s *Service) ExtendTimeline(ctx context.Context, taskID, creatorID string, delta decimal.Decimal, unit TimelineUnit) Outcome {
	t, err := s.get(ctx, taskID)
	if err != nil {
		return failed(err)
	}

	if t.CreatorID != creatorID {
		return failed(engine.BusinessError(constant.ErrNotTaskCreator, entityTask))
	}

	if t.Status != StatusOpen && t.Status != StatusInProgress {
		return failed(engine.BusinessError(constant.ErrTaskState, entityTask))
	}

	extended, err := t.Timeline.Extend(delta, unit)
	if err != nil {
		return failed(engine.BusinessError(err, entityTask))
	}

	if err := s.tasks.UpdateTimeline(ctx, taskID, extended); err != nil {
		return failed(engine.BusinessError(err, entityTask))
	}

	t.Timeline = extended

	if err := s.comment(ctx, t, fmt.Sprintf("Timeline extended to %s %s.", extended.Value, extended.Unit)); err != nil {
		return partial(t, "", "timeline extended; issue annotation failed", err)
	}

	return completed(t, "")
}

// MarkComplete records a submission and moves the task to
// MARKED_AS_COMPLETED. Re-submission while already marked is allowed.
func (s *Service) MarkComplete(ctx context.Context, taskID, contributorID string) Outcome {
	t, err := s.get(ctx, taskID)
	if err != nil {
		return failed(err)
	}

	if t.ContributorID == "" || t.ContributorID != contributorID {
		return failed(engine.BusinessError(constant.ErrNotTaskContributor, entityTask))
	}

	if t.Status != StatusInProgress && t.Status != StatusMarkedAsCompleted {
		return failed(engine.BusinessError(constant.ErrTaskState, entityTask))
	}

	if _, err := s.activities.CreateSubmission(ctx, taskID, contributorID); err != nil {
		return failed(engine.BusinessError(err, entityTask))
	}

	if t.Status == StatusInProgress {
		err = s.tasks.Transition(ctx, Transition{
			ID:   taskID,
			From: StatusInProgress,
			To:   StatusMarkedAsCompleted,
		})
		if err != nil {
			return failed(engine.BusinessError(err, entityTask))
		}

		t.Status = StatusMarkedAsCompleted
	}

	if err := s.comment(ctx, t, "Work submitted for validation."); err != nil {
		return partial(t, "", "submission recorded; issue annotation failed", err)
	}

	return completed(t, "")
}

// Settle validates the submitted work and pays the bounty out of escrow to
// the contributor via a sponsored transfer, with the payer covering the
// network fee.
func (s *Service) Settle(ctx context.Context, taskID, creatorID string) Outcome {
	t, err := s.get(ctx, taskID)
	if err != nil {
		return failed(err)
	}

	if t.CreatorID != creatorID {
		return failed(engine.BusinessError(constant.ErrNotTaskCreator, entityTask))
	}

	if t.Status != StatusMarkedAsCompleted || t.Settled {
		return failed(engine.BusinessError(constant.ErrTaskState, entityTask))
	}

	payer, escrowWallet, err := s.installationWallets(ctx, t.InstallationID)
	if err != nil {
		return failed(err)
	}

	contributorWallet, err := s.wallets.Get(ctx, wallet.OwnerUser, t.ContributorID, wallet.KindOperating)
	if err != nil {
		return failed(engine.BusinessError(err, entityTask))
	}

	if err := s.ensureAssetSupport(ctx, contributorWallet, payer); err != nil {
		return failed(err)
	}

	settlement, err := s.funds.TransferViaSponsor(ctx, payer.Source(), escrowWallet.Source(), contributorWallet.PublicAddress, s.bountyAsset, s.bountyAsset, t.Bounty)
	if err != nil {
		return failed(err)
	}

	recordErr := s.record(ctx, settlement.TxHash, transaction.CategoryBounty, t.Bounty, wallet.OwnerUser, t.ContributorID, t.ID)

	completedAt := s.now().UTC()

	err = s.tasks.Transition(ctx, Transition{
		ID:          taskID,
		From:        StatusMarkedAsCompleted,
		To:          StatusCompleted,
		CompletedAt: &completedAt,
		Settled:     true,
	})
	if err != nil {
		s.logger.Errorf("settlement row update failed after payout, reconcile tx %s: %v", settlement.TxHash, err)
		return failed(engine.BusinessError(err, entityTask))
	}

	t.Status = StatusCompleted
	t.CompletedAt = &completedAt
	t.Settled = true

	if recordErr != nil {
		return partial(t, settlement.TxHash, "task settled; transaction record failed", recordErr)
	}

	if err := s.stats.IncrementContributor(ctx, t.ContributorID, t.Bounty); err != nil {
		return partial(t, settlement.TxHash, "task settled; contributor stats update failed", err)
	}

	if err := s.comment(ctx, t, fmt.Sprintf("Bounty of %s %s paid out.", t.Bounty, s.bountyAsset.Code)); err != nil {
		return partial(t, settlement.TxHash, "task settled; issue annotation failed", err)
	}

	return completed(t, settlement.TxHash)
}

// Delete refunds the escrowed bounty to the payer and removes the task.
// Only an OPEN task with no contributor can be deleted.
func (s *Service) Delete(ctx context.Context, taskID, creatorID string) Outcome {
	t, err := s.get(ctx, taskID)
	if err != nil {
		return failed(err)
	}

	if t.CreatorID != creatorID {
		return failed(engine.BusinessError(constant.ErrNotTaskCreator, entityTask))
	}

	if t.Status != StatusOpen {
		return failed(engine.BusinessError(constant.ErrTaskState, entityTask))
	}

	if t.ContributorID != "" {
		return failed(engine.BusinessError(constant.ErrContributorAssigned, entityTask))
	}

	payer, escrowWallet, err := s.installationWallets(ctx, t.InstallationID)
	if err != nil {
		return failed(err)
	}

	txHash, err := s.funds.Transfer(ctx, escrowWallet.Source(), payer.PublicAddress, s.bountyAsset, s.bountyAsset, t.Bounty)
	if err != nil {
		return failed(err)
	}

	// Recorded before the row disappears so the refund is never lost from
	// the transaction log.
	recordErr := s.record(ctx, txHash, transaction.CategoryWithdrawal, t.Bounty, wallet.OwnerInstallation, t.InstallationID, t.ID)
	if recordErr != nil {
		s.logger.Errorf("refund record failed, reconcile tx %s: %v", txHash, recordErr)
	}

	if err := s.tasks.Delete(ctx, taskID, StatusOpen); err != nil {
		s.logger.Errorf("task delete failed after refund, reconcile tx %s: %v", txHash, err)
		return failed(engine.BusinessError(err, entityTask))
	}

	if err := s.cleanupAnnotations(ctx, t); err != nil {
		return partial(t, txHash, "task deleted; issue annotation cleanup failed", err)
	}

	if recordErr != nil {
		return partial(t, txHash, "task deleted; refund record failed", recordErr)
	}

	return completed(t, txHash)
}

// IngestTopUps scans the payer wallet's incoming payments and appends any
// not yet recorded, cutting off at the last recorded top-up hash. Replays
// are no-ops, so the scan is safe to run on any cadence.
func (s *Service) IngestTopUps(ctx context.Context, installationID string) ([]*transaction.Record, error) {
	payer, err := s.wallets.Get(ctx, wallet.OwnerInstallation, installationID, wallet.KindOperating)
	if err != nil {
		return nil, engine.BusinessError(err, entityTask)
	}

	lastSeen, err := s.transactions.LastSeen(ctx, wallet.OwnerInstallation, installationID, transaction.CategoryTopUp)
	if err != nil {
		return nil, err
	}

	payments, err := s.funds.IncomingPayments(ctx, payer.PublicAddress, s.bountyAsset, lastSeen)
	if err != nil {
		return nil, err
	}

	var fresh []ledger.Payment

	for _, payment := range payments {
		if payment.TxHash == lastSeen {
			break
		}

		fresh = append(fresh, payment)
	}

	records := make([]*transaction.Record, 0, len(fresh))

	// Oldest first, so LastSeen always points at the newest ingested hash.
	for i := len(fresh) - 1; i >= 0; i-- {
		payment := fresh[i]

		record := transaction.New(payment.TxHash, transaction.CategoryTopUp, payment.Amount, s.bountyAsset.Code, wallet.OwnerInstallation, installationID, s.now().UTC())
		if err := s.transactions.Record(ctx, record); err != nil {
			return records, err
		}

		records = append(records, record)
	}

	return records, nil
}

// Get returns the task by id.
func (s *Service) Get(ctx context.Context, taskID string) (*Task, error) {
	return s.get(ctx, taskID)
}

func (s *Service) get(ctx context.Context, taskID string) (*Task, error) {
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, engine.BusinessError(err, entityTask)
	}

	return t, nil
}

func (s *Service) installationWallets(ctx context.Context, installationID string) (payer, escrowWallet *wallet.Wallet, err error) {
	payer, err = s.wallets.Get(ctx, wallet.OwnerInstallation, installationID, wallet.KindOperating)
	if err != nil {
		return nil, nil, engine.BusinessError(err, entityTask)
	}

	escrowWallet, err = s.wallets.Get(ctx, wallet.OwnerInstallation, installationID, wallet.KindEscrow)
	if err != nil {
		return nil, nil, engine.BusinessError(err, entityTask)
	}

	return payer, escrowWallet, nil
}

// ensureAssetSupport establishes the holder's trustline for the bounty
// asset when absent, with the sponsor paying the reserve.
func (s *Service) ensureAssetSupport(ctx context.Context, holder, sponsor *wallet.Wallet) error {
	supported, err := s.funds.HasAssetSupport(ctx, holder.PublicAddress, s.bountyAsset)
	if err != nil {
		return err
	}

	if supported {
		return nil
	}

	txHash, err := s.funds.EstablishAssetSupport(ctx, holder.Source(), s.bountyAsset, sponsor.Source())
	if err != nil {
		return fmt.Errorf("establish asset support for %s: %w", holder.PublicAddress, err)
	}

	s.logger.Infof("established %s support for wallet %s, tx %s", s.bountyAsset.Code, holder.PublicAddress, txHash)

	return nil
}

func (s *Service) record(ctx context.Context, txHash string, category transaction.Category, amount decimal.Decimal, ownerType wallet.OwnerType, ownerID, taskID string) error {
	record := transaction.New(txHash, category, amount, s.bountyAsset.Code, ownerType, ownerID, s.now().UTC())
	record.TaskID = taskID

	return s.transactions.Record(ctx, record)
}

// annotateCreated labels the issue and leaves the bounty comment, keeping
// the comment id for later updates.
func (s *Service) annotateCreated(ctx context.Context, t *Task) error {
	result, err := s.vcsExec.Do(ctx, func(ctx context.Context) (any, error) {
		if err := s.collab.AddLabel(ctx, t.Repo, t.IssueNumber, bountyLabel); err != nil {
			return nil, err
		}

		return s.collab.CreateComment(ctx, t.Repo, t.IssueNumber, fmt.Sprintf("A bounty of %s %s is on this issue. Timeline: %s %s.", t.Bounty, s.bountyAsset.Code, t.Timeline.Value, t.Timeline.Unit))
	})
	if err != nil {
		return err
	}

	commentID := result.(int64)
	t.CommentID = commentID

	if err := s.tasks.SetCommentID(ctx, t.ID, commentID); err != nil {
		return err
	}

	return nil
}

// comment updates the task's bounty comment when one exists, and otherwise
// does nothing.
func (s *Service) comment(ctx context.Context, t *Task, body string) error {
	if t.CommentID == 0 {
		return nil
	}

	_, err := s.vcsExec.Do(ctx, func(ctx context.Context) (any, error) {
		return nil, s.collab.UpdateComment(ctx, t.Repo, t.CommentID, body)
	})

	return err
}

func (s *Service) cleanupAnnotations(ctx context.Context, t *Task) error {
	_, err := s.vcsExec.Do(ctx, func(ctx context.Context) (any, error) {
		if err := s.collab.RemoveLabel(ctx, t.Repo, t.IssueNumber, bountyLabel); err != nil {
			return nil, err
		}

		if t.CommentID != 0 {
			return nil, s.collab.DeleteComment(ctx, t.Repo, t.CommentID)
		}

		return nil, nil
	})

	return err
}
