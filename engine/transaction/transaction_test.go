//go:build unit

package transaction

import (
	"testing"
	"time"

	"github.com/bountybase/engine/engine/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryValid(t *testing.T) {
	t.Parallel()

	for _, category := range []Category{CategoryBounty, CategoryWithdrawal, CategoryTopUp, CategorySwapUSDC, CategorySwapXLM} {
		assert.True(t, category.Valid(), string(category))
	}

	assert.False(t, Category("REFUND").Valid())
	assert.False(t, Category("").Valid())
}

func TestNewAssignsFreshIDs(t *testing.T) {
	t.Parallel()

	doneAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first := New("abc123", CategoryTopUp, decimal.NewFromInt(50), "USDC", wallet.OwnerInstallation, "inst-1", doneAt)
	second := New("def456", CategoryTopUp, decimal.NewFromInt(50), "USDC", wallet.OwnerInstallation, "inst-1", doneAt)

	require.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "abc123", first.TxHash)
	assert.Equal(t, doneAt, first.DoneAt)
	assert.Empty(t, first.TaskID)
}
