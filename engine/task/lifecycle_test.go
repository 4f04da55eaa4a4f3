//go:build unit

package task

import (
	"context"
	"errors"
	"testing"
	"time"

	constant "github.com/bountybase/engine/engine/constants"
	"github.com/bountybase/engine/engine/escrow"
	"github.com/bountybase/engine/engine/ledger"
	"github.com/bountybase/engine/engine/transaction"
	"github.com/bountybase/engine/engine/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usdc = ledger.Asset{Code: "USDC", Issuer: "GISSUER"}

type memTasks struct {
	rows      map[string]*Task
	createErr error
}

func newMemTasks() *memTasks {
	return &memTasks{rows: map[string]*Task{}}
}

func (m *memTasks) Create(_ context.Context, t *Task) error {
	if m.createErr != nil {
		return m.createErr
	}

	row := *t
	m.rows[t.ID] = &row

	return nil
}

func (m *memTasks) Get(_ context.Context, id string) (*Task, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, constant.ErrTaskNotFound
	}

	copied := *row

	return &copied, nil
}

func (m *memTasks) Transition(_ context.Context, update Transition) error {
	row, ok := m.rows[update.ID]
	if !ok {
		return constant.ErrTaskNotFound
	}

	if row.Status != update.From {
		return constant.ErrTaskState
	}

	row.Status = update.To
	if update.ContributorID != "" {
		row.ContributorID = update.ContributorID
	}

	if update.AcceptedAt != nil {
		row.AcceptedAt = update.AcceptedAt
	}

	if update.CompletedAt != nil {
		row.CompletedAt = update.CompletedAt
	}

	if update.Settled {
		row.Settled = true
	}

	return nil
}

func (m *memTasks) UpdateBounty(_ context.Context, id string, expected Status, bounty decimal.Decimal) error {
	row, ok := m.rows[id]
	if !ok {
		return constant.ErrTaskNotFound
	}

	if row.Status != expected {
		return constant.ErrTaskState
	}

	row.Bounty = bounty

	return nil
}

func (m *memTasks) UpdateTimeline(_ context.Context, id string, timeline Timeline) error {
	row, ok := m.rows[id]
	if !ok {
		return constant.ErrTaskNotFound
	}

	row.Timeline = timeline

	return nil
}

func (m *memTasks) SetCommentID(_ context.Context, id string, commentID int64) error {
	row, ok := m.rows[id]
	if !ok {
		return constant.ErrTaskNotFound
	}

	row.CommentID = commentID

	return nil
}

func (m *memTasks) Delete(_ context.Context, id string, expected Status) error {
	row, ok := m.rows[id]
	if !ok {
		return constant.ErrTaskNotFound
	}

	if row.Status != expected || row.ContributorID != "" {
		return constant.ErrTaskState
	}

	delete(m.rows, id)

	return nil
}

type memActivities struct {
	applications map[string]bool // taskID+userID
	submissions  int
	counts       map[string]int
}

func newMemActivities() *memActivities {
	return &memActivities{applications: map[string]bool{}, counts: map[string]int{}}
}

func (m *memActivities) CreateApplication(_ context.Context, taskID, userID string) (*Activity, error) {
	key := taskID + "/" + userID
	if m.applications[key] {
		return nil, constant.ErrAlreadyApplied
	}

	m.applications[key] = true
	m.counts[taskID]++

	return &Activity{ID: key, TaskID: taskID, UserID: userID, Kind: ActivityApplication}, nil
}

func (m *memActivities) HasApplication(_ context.Context, taskID, userID string) (bool, error) {
	return m.applications[taskID+"/"+userID], nil
}

func (m *memActivities) CountApplications(_ context.Context, taskID string) (int, error) {
	return m.counts[taskID], nil
}

func (m *memActivities) CreateSubmission(_ context.Context, taskID, userID string) (*Activity, error) {
	m.submissions++

	return &Activity{TaskID: taskID, UserID: userID, Kind: ActivitySubmission}, nil
}

type memWallets struct {
	wallets map[string]*wallet.Wallet
}

func newMemWallets() *memWallets {
	return &memWallets{wallets: map[string]*wallet.Wallet{}}
}

func walletKey(ownerType wallet.OwnerType, ownerID string, kind wallet.Kind) string {
	return string(ownerType) + "/" + ownerID + "/" + string(kind)
}

func (m *memWallets) Create(_ context.Context, w *wallet.Wallet) error {
	m.wallets[walletKey(w.OwnerType, w.OwnerID, w.Kind)] = w

	return nil
}

func (m *memWallets) Get(_ context.Context, ownerType wallet.OwnerType, ownerID string, kind wallet.Kind) (*wallet.Wallet, error) {
	w, ok := m.wallets[walletKey(ownerType, ownerID, kind)]
	if !ok {
		return nil, constant.ErrWalletNotFound
	}

	return w, nil
}

type memTransactions struct {
	records   []*transaction.Record
	recordErr error
}

func (m *memTransactions) Record(_ context.Context, record *transaction.Record) error {
	if m.recordErr != nil {
		return m.recordErr
	}

	for _, existing := range m.records {
		if existing.TxHash == record.TxHash {
			return nil
		}
	}

	m.records = append(m.records, record)

	return nil
}

func (m *memTransactions) LastSeen(_ context.Context, ownerType wallet.OwnerType, ownerID string, category transaction.Category) (string, error) {
	for i := len(m.records) - 1; i >= 0; i-- {
		record := m.records[i]
		if record.OwnerType == ownerType && record.OwnerID == ownerID && record.Category == category {
			return record.TxHash, nil
		}
	}

	return "", nil
}

func (m *memTransactions) ListByOwner(_ context.Context, ownerType wallet.OwnerType, ownerID string) ([]*transaction.Record, error) {
	var out []*transaction.Record

	for _, record := range m.records {
		if record.OwnerType == ownerType && record.OwnerID == ownerID {
			out = append(out, record)
		}
	}

	return out, nil
}

func (m *memTransactions) categories() []transaction.Category {
	out := make([]transaction.Category, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record.Category)
	}

	return out
}

type memStats struct {
	completed map[string]int
	earned    map[string]decimal.Decimal
}

func newMemStats() *memStats {
	return &memStats{completed: map[string]int{}, earned: map[string]decimal.Decimal{}}
}

func (m *memStats) IncrementContributor(_ context.Context, userID string, earned decimal.Decimal) error {
	m.completed[userID]++
	m.earned[userID] = m.earned[userID].Add(earned)

	return nil
}

func (m *memStats) Contributor(_ context.Context, userID string) (*ContributorStats, error) {
	return &ContributorStats{UserID: userID, TasksCompleted: m.completed[userID], TotalEarned: m.earned[userID]}, nil
}

type transferCall struct {
	from   string
	to     string
	amount decimal.Decimal
}

type fakeFunds struct {
	balance     decimal.Decimal
	balanceErr  error
	supported   bool
	transferErr error
	transfers   []transferCall
	sponsored   []transferCall
	established int
	payments    []ledger.Payment
	nextHash    int
}

func (f *fakeFunds) hash() string {
	f.nextHash++

	return "tx-" + string(rune('a'+f.nextHash-1))
}

func (f *fakeFunds) Balance(_ context.Context, _ string, _ ledger.Asset) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func (f *fakeFunds) HasAssetSupport(_ context.Context, _ string, _ ledger.Asset) (bool, error) {
	return f.supported, nil
}

func (f *fakeFunds) EstablishAssetSupport(_ context.Context, _ wallet.FundSource, _ ledger.Asset, _ wallet.FundSource) (string, error) {
	f.established++

	return f.hash(), nil
}

func (f *fakeFunds) Transfer(_ context.Context, from wallet.FundSource, to string, _, _ ledger.Asset, amount decimal.Decimal) (string, error) {
	if f.transferErr != nil {
		return "", f.transferErr
	}

	f.transfers = append(f.transfers, transferCall{from: from.Address(), to: to, amount: amount})

	return f.hash(), nil
}

func (f *fakeFunds) TransferViaSponsor(_ context.Context, _, from wallet.FundSource, to string, _, _ ledger.Asset, amount decimal.Decimal) (escrow.SponsoredTransfer, error) {
	if f.transferErr != nil {
		return escrow.SponsoredTransfer{}, f.transferErr
	}

	f.sponsored = append(f.sponsored, transferCall{from: from.Address(), to: to, amount: amount})

	return escrow.SponsoredTransfer{TxHash: f.hash(), SponsorTxHash: f.hash()}, nil
}

func (f *fakeFunds) IncomingPayments(_ context.Context, _ string, _ ledger.Asset, _ string) ([]ledger.Payment, error) {
	return f.payments, nil
}

type fakeCollab struct {
	labels    map[string]bool
	comments  map[int64]string
	nextID    int64
	labelErr  error
	removeErr error
}

func newFakeCollab() *fakeCollab {
	return &fakeCollab{labels: map[string]bool{}, comments: map[int64]string{}}
}

func (f *fakeCollab) AddLabel(_ context.Context, _ string, _ int, label string) error {
	if f.labelErr != nil {
		return f.labelErr
	}

	f.labels[label] = true

	return nil
}

func (f *fakeCollab) RemoveLabel(_ context.Context, _ string, _ int, label string) error {
	if f.removeErr != nil {
		return f.removeErr
	}

	delete(f.labels, label)

	return nil
}

func (f *fakeCollab) CreateComment(_ context.Context, _ string, _ int, body string) (int64, error) {
	f.nextID++
	f.comments[f.nextID] = body

	return f.nextID, nil
}

func (f *fakeCollab) UpdateComment(_ context.Context, _ string, commentID int64, body string) error {
	f.comments[commentID] = body

	return nil
}

func (f *fakeCollab) DeleteComment(_ context.Context, _ string, commentID int64) error {
	delete(f.comments, commentID)

	return nil
}

type fixture struct {
	service      *Service
	tasks        *memTasks
	activities   *memActivities
	wallets      *memWallets
	transactions *memTransactions
	stats        *memStats
	funds        *fakeFunds
	collab       *fakeCollab
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		tasks:        newMemTasks(),
		activities:   newMemActivities(),
		wallets:      newMemWallets(),
		transactions: &memTransactions{},
		stats:        newMemStats(),
		funds:        &fakeFunds{balance: decimal.NewFromInt(1000), supported: true},
		collab:       newFakeCollab(),
	}

	require.NoError(t, f.wallets.Create(context.Background(), &wallet.Wallet{
		ID: "w-payer", PublicAddress: "GPAYER", SecretRef: "ref-payer",
		OwnerType: wallet.OwnerInstallation, OwnerID: "inst-1", Kind: wallet.KindOperating,
	}))
	require.NoError(t, f.wallets.Create(context.Background(), &wallet.Wallet{
		ID: "w-escrow", PublicAddress: "GESCROW", SecretRef: "ref-escrow",
		OwnerType: wallet.OwnerInstallation, OwnerID: "inst-1", Kind: wallet.KindEscrow,
	}))
	require.NoError(t, f.wallets.Create(context.Background(), &wallet.Wallet{
		ID: "w-contrib", PublicAddress: "GCONTRIB", SecretRef: "ref-contrib",
		OwnerType: wallet.OwnerUser, OwnerID: "user-2", Kind: wallet.KindOperating,
	}))

	f.service = NewService(Dependencies{
		Tasks:        f.tasks,
		Activities:   f.activities,
		Wallets:      f.wallets,
		Transactions: f.transactions,
		Stats:        f.stats,
		Funds:        f.funds,
		Collaborator: f.collab,
		BountyAsset:  usdc,
	})

	return f
}

func (f *fixture) createRequest() CreateTaskRequest {
	return CreateTaskRequest{
		InstallationID: "inst-1",
		CreatorID:      "user-1",
		Repo:           "acme/widgets",
		IssueNumber:    7,
		Bounty:         decimal.NewFromInt(100),
		TimelineValue:  decimal.NewFromInt(5),
		TimelineUnit:   UnitDay,
	}
}

func (f *fixture) createTask(t *testing.T) *Task {
	t.Helper()

	outcome := f.service.Create(context.Background(), f.createRequest())
	require.True(t, outcome.Complete(), "create outcome: %+v err=%v", outcome, outcome.Err)

	return outcome.Task
}

func (f *fixture) acceptedTask(t *testing.T) *Task {
	t.Helper()

	created := f.createTask(t)

	_, err := f.service.Apply(context.Background(), created.ID, "user-2")
	require.NoError(t, err)

	outcome := f.service.Accept(context.Background(), created.ID, "user-1", "user-2")
	require.True(t, outcome.Complete(), "accept outcome err: %v", outcome.Err)

	return outcome.Task
}

func TestCreateMovesBountyIntoEscrow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t)

	assert.Equal(t, StatusOpen, created.Status)

	require.Len(t, f.funds.transfers, 1)
	assert.Equal(t, "GPAYER", f.funds.transfers[0].from)
	assert.Equal(t, "GESCROW", f.funds.transfers[0].to)
	assert.True(t, f.funds.transfers[0].amount.Equal(decimal.NewFromInt(100)))

	require.Len(t, f.transactions.records, 1)
	assert.Equal(t, transaction.CategoryBounty, f.transactions.records[0].Category)
	assert.Equal(t, created.ID, f.transactions.records[0].TaskID)

	assert.True(t, f.collab.labels["bounty"])
	assert.NotZero(t, created.CommentID)

	stored, err := f.tasks.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.CommentID, stored.CommentID)
}

func TestCreateRejectsInsufficientBalance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.funds.balance = decimal.NewFromInt(50)

	outcome := f.service.Create(context.Background(), f.createRequest())

	require.True(t, outcome.Failed())
	assert.ErrorIs(t, outcome.Err, constant.ErrInsufficientBalance)
	assert.Empty(t, f.funds.transfers)
	assert.Empty(t, f.tasks.rows)
}

func TestCreateEstablishesMissingAssetSupport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.funds.supported = false

	f.createTask(t)

	assert.Equal(t, 1, f.funds.established)
}

func TestCreateReportsPartialSuccessWhenAnnotationFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.collab.labelErr = errors.New("api down")

	outcome := f.service.Create(context.Background(), f.createRequest())

	assert.Equal(t, OutcomePartial, outcome.Kind)
	assert.NotEmpty(t, outcome.TxHash)
	assert.Contains(t, outcome.Detail, "annotation")

	// The fund movement and the task both stand.
	require.Len(t, f.funds.transfers, 1)
	assert.Len(t, f.tasks.rows, 1)
}

func TestApplyRejectsDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t)

	_, err := f.service.Apply(context.Background(), created.ID, "user-2")
	require.NoError(t, err)

	_, err = f.service.Apply(context.Background(), created.ID, "user-2")
	assert.ErrorIs(t, err, constant.ErrAlreadyApplied)
}

func TestAcceptGuards(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t)

	outcome := f.service.Accept(context.Background(), created.ID, "someone-else", "user-2")
	assert.ErrorIs(t, outcome.Err, constant.ErrNotTaskCreator)

	outcome = f.service.Accept(context.Background(), created.ID, "user-1", "user-2")
	assert.ErrorIs(t, outcome.Err, constant.ErrNoApplication)
}

func TestAcceptAssignsContributor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	accepted := f.acceptedTask(t)

	assert.Equal(t, StatusInProgress, accepted.Status)
	assert.Equal(t, "user-2", accepted.ContributorID)
	assert.NotNil(t, accepted.AcceptedAt)
}

func TestUpdateBountyLockedAfterApplication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t)

	_, err := f.service.Apply(context.Background(), created.ID, "user-2")
	require.NoError(t, err)

	outcome := f.service.UpdateBounty(context.Background(), created.ID, "user-1", decimal.NewFromInt(200))

	assert.ErrorIs(t, outcome.Err, constant.ErrBountyLocked)
}

func TestUpdateBountyRaisePullsDelta(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t)

	outcome := f.service.UpdateBounty(context.Background(), created.ID, "user-1", decimal.NewFromInt(150))

	require.True(t, outcome.Complete(), "err: %v", outcome.Err)
	require.Len(t, f.funds.transfers, 2)

	raise := f.funds.transfers[1]
	assert.Equal(t, "GPAYER", raise.from)
	assert.Equal(t, "GESCROW", raise.to)
	assert.True(t, raise.amount.Equal(decimal.NewFromInt(50)))

	stored, err := f.tasks.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Bounty.Equal(decimal.NewFromInt(150)))
}

func TestUpdateBountyCutReturnsExcess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t)

	outcome := f.service.UpdateBounty(context.Background(), created.ID, "user-1", decimal.NewFromInt(60))

	require.True(t, outcome.Complete(), "err: %v", outcome.Err)

	refund := f.funds.transfers[1]
	assert.Equal(t, "GESCROW", refund.from)
	assert.Equal(t, "GPAYER", refund.to)
	assert.True(t, refund.amount.Equal(decimal.NewFromInt(40)))

	assert.Contains(t, f.transactions.categories(), transaction.CategoryWithdrawal)
}

func TestExtendTimelineFoldsUnits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	request := f.createRequest()
	request.TimelineValue = decimal.NewFromInt(10)

	outcome := f.service.Create(context.Background(), request)
	require.True(t, outcome.Complete())

	extended := f.service.ExtendTimeline(context.Background(), outcome.Task.ID, "user-1", decimal.NewFromInt(3), UnitDay)

	require.True(t, extended.Complete(), "err: %v", extended.Err)
	assert.True(t, extended.Task.Timeline.Value.Equal(decimal.RequireFromString("1.6")))
	assert.Equal(t, UnitWeek, extended.Task.Timeline.Unit)

	stored, err := f.tasks.Get(context.Background(), outcome.Task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Timeline.Value.Equal(decimal.RequireFromString("1.6")))
}

func TestMarkCompleteIsContributorOnlyAndIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	accepted := f.acceptedTask(t)

	outcome := f.service.MarkComplete(context.Background(), accepted.ID, "user-3")
	assert.ErrorIs(t, outcome.Err, constant.ErrNotTaskContributor)

	outcome = f.service.MarkComplete(context.Background(), accepted.ID, "user-2")
	require.True(t, outcome.Complete(), "err: %v", outcome.Err)
	assert.Equal(t, StatusMarkedAsCompleted, outcome.Task.Status)

	// Re-submission while already marked stays in the same state.
	outcome = f.service.MarkComplete(context.Background(), accepted.ID, "user-2")
	require.True(t, outcome.Complete(), "err: %v", outcome.Err)
	assert.Equal(t, StatusMarkedAsCompleted, outcome.Task.Status)
	assert.Equal(t, 2, f.activities.submissions)
}

func TestSettlePaysContributorOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	accepted := f.acceptedTask(t)

	require.True(t, f.service.MarkComplete(context.Background(), accepted.ID, "user-2").Complete())

	outcome := f.service.Settle(context.Background(), accepted.ID, "user-1")

	require.True(t, outcome.Complete(), "err: %v", outcome.Err)
	assert.Equal(t, StatusCompleted, outcome.Task.Status)
	assert.True(t, outcome.Task.Settled)
	assert.NotNil(t, outcome.Task.CompletedAt)

	require.Len(t, f.funds.sponsored, 1)
	assert.Equal(t, "GESCROW", f.funds.sponsored[0].from)
	assert.Equal(t, "GCONTRIB", f.funds.sponsored[0].to)
	assert.True(t, f.funds.sponsored[0].amount.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, 1, f.stats.completed["user-2"])
	assert.True(t, f.stats.earned["user-2"].Equal(decimal.NewFromInt(100)))

	// A second settle must not move funds again.
	second := f.service.Settle(context.Background(), accepted.ID, "user-1")

	assert.True(t, second.Failed())
	assert.ErrorIs(t, second.Err, constant.ErrTaskState)
	assert.Len(t, f.funds.sponsored, 1)
	assert.Equal(t, 1, f.stats.completed["user-2"])
}

func TestSettleRequiresMarkedState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	accepted := f.acceptedTask(t)

	outcome := f.service.Settle(context.Background(), accepted.ID, "user-1")

	assert.True(t, outcome.Failed())
	assert.ErrorIs(t, outcome.Err, constant.ErrTaskState)
	assert.Empty(t, f.funds.sponsored)
}

func TestDeleteRefundsAndRemoves(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createTask(t)

	outcome := f.service.Delete(context.Background(), created.ID, "user-1")

	require.True(t, outcome.Complete(), "err: %v", outcome.Err)

	refund := f.funds.transfers[1]
	assert.Equal(t, "GESCROW", refund.from)
	assert.Equal(t, "GPAYER", refund.to)
	assert.True(t, refund.amount.Equal(decimal.NewFromInt(100)))

	assert.Contains(t, f.transactions.categories(), transaction.CategoryWithdrawal)
	assert.Empty(t, f.tasks.rows)
	assert.False(t, f.collab.labels["bounty"])
}

func TestDeleteRejectedOnceContributorAssigned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	accepted := f.acceptedTask(t)

	outcome := f.service.Delete(context.Background(), accepted.ID, "user-1")

	assert.True(t, outcome.Failed())
	assert.ErrorIs(t, outcome.Err, constant.ErrTaskState)
	assert.Len(t, f.funds.transfers, 1)
}

func TestIngestTopUpsCutsOffAtLastSeenHash(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	amount := decimal.NewFromInt(25)
	f.funds.payments = []ledger.Payment{
		{TxHash: "h3", To: "GPAYER", Amount: amount, Asset: usdc},
		{TxHash: "h2", To: "GPAYER", Amount: amount, Asset: usdc},
		{TxHash: "h1", To: "GPAYER", Amount: amount, Asset: usdc},
	}

	require.NoError(t, f.transactions.Record(context.Background(), &transaction.Record{
		ID: "r1", TxHash: "h1", Category: transaction.CategoryTopUp,
		OwnerType: wallet.OwnerInstallation, OwnerID: "inst-1",
		Amount: amount, AssetCode: usdc.Code, DoneAt: time.Now(),
	}))

	records, err := f.service.IngestTopUps(context.Background(), "inst-1")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "h2", records[0].TxHash)
	assert.Equal(t, "h3", records[1].TxHash)

	// A second scan ingests nothing new.
	records, err = f.service.IngestTopUps(context.Background(), "inst-1")

	require.NoError(t, err)
	assert.Empty(t, records)
}
