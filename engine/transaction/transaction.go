package transaction

import (
	"time"

	"github.com/bountybase/engine/engine/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category classifies why funds moved.
type Category string

const (
	CategoryBounty     Category = "BOUNTY"
	CategoryWithdrawal Category = "WITHDRAWAL"
	CategoryTopUp      Category = "TOP_UP"
	CategorySwapUSDC   Category = "SWAP_USDC"
	CategorySwapXLM    Category = "SWAP_XLM"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryBounty, CategoryWithdrawal, CategoryTopUp, CategorySwapUSDC, CategorySwapXLM:
		return true
	}
	return false
}

// Record is one committed ledger transaction. TxHash is unique: replaying
// the same hash is a no-op at the store layer, which is what makes top-up
// ingestion idempotent.
type Record struct {
	ID        string           `json:"id"`
	TxHash    string           `json:"txHash"`
	Category  Category         `json:"category"`
	Amount    decimal.Decimal  `json:"amount"`
	AssetCode string           `json:"asset"`
	OwnerType wallet.OwnerType `json:"ownerType"`
	OwnerID   string           `json:"ownerId"`
	TaskID    string           `json:"taskId,omitempty"`
	DoneAt    time.Time        `json:"doneAt"`
}

// New builds a record with a fresh id and the given completion time.
func New(txHash string, category Category, amount decimal.Decimal, assetCode string, ownerType wallet.OwnerType, ownerID string, doneAt time.Time) *Record {
	return &Record{
		ID:        uuid.New().String(),
		TxHash:    txHash,
		Category:  category,
		Amount:    amount,
		AssetCode: assetCode,
		OwnerType: ownerType,
		OwnerID:   ownerID,
		DoneAt:    doneAt,
	}
}
