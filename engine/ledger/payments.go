package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon/operations"
)

const incomingPaymentsPageLimit = 200

// Payment is one transfer observed on the ledger.
type Payment struct {
	TxHash string
	From   string
	To     string
	Amount decimal.Decimal
	Asset  Asset
}

// HasAssetSupport reports whether address already holds a balance line for
// asset. Native asset support is implicit on every funded account.
func (c *Client) HasAssetSupport(ctx context.Context, address string, asset Asset) (bool, error) {
	if asset.IsNative() {
		return true, nil
	}

	account, err := c.account(address)
	if err != nil {
		return false, err
	}

	for _, balance := range account.Balances {
		if balanceMatches(balance, asset) {
			return true, nil
		}
	}

	return false, nil
}

// IncomingPayments lists payments received by address in asset, newest
// first, strictly newer than sinceTxHash. The walk follows the paging
// cursor until sinceTxHash is met or the account's operations are
// exhausted, so a burst larger than one page is never truncated. An empty
// sinceTxHash walks the full history.
func (c *Client) IncomingPayments(ctx context.Context, address string, asset Asset, sinceTxHash string) ([]Payment, error) {
	page, err := c.horizon.Payments(horizonclient.OperationRequest{
		ForAccount: address,
		Order:      horizonclient.OrderDesc,
		Limit:      incomingPaymentsPageLimit,
	})
	if err != nil {
		return nil, classify(err)
	}

	var received []Payment

	for len(page.Embedded.Records) > 0 {
		for _, record := range page.Embedded.Records {
			if sinceTxHash != "" && record.GetTransactionHash() == sinceTxHash {
				return received, nil
			}

			payment, ok := record.(operations.Payment)
			if !ok || payment.To != address {
				continue
			}

			if !effectAssetMatches(payment.Asset, asset) {
				continue
			}

			amount, err := decimal.NewFromString(payment.Amount)
			if err != nil {
				return nil, fmt.Errorf("parse payment amount %q: %w", payment.Amount, err)
			}

			received = append(received, Payment{
				TxHash: payment.TransactionHash,
				From:   payment.From,
				To:     payment.To,
				Amount: amount,
				Asset:  asset,
			})
		}

		page, err = c.horizon.NextOperationsPage(page)
		if err != nil {
			return nil, classify(err)
		}
	}

	return received, nil
}
