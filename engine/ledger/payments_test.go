//go:build unit

package ledger

import (
	"context"
	"testing"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/protocols/horizon/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHorizon serves canned operation pages in order. Only the methods
// IncomingPayments touches are implemented.
type fakeHorizon struct {
	horizonclient.ClientInterface

	pages []operations.OperationsPage
	next  int
}

func (f *fakeHorizon) Payments(_ horizonclient.OperationRequest) (operations.OperationsPage, error) {
	f.next = 1

	return f.pages[0], nil
}

func (f *fakeHorizon) NextOperationsPage(_ operations.OperationsPage) (operations.OperationsPage, error) {
	if f.next >= len(f.pages) {
		return operations.OperationsPage{}, nil
	}

	page := f.pages[f.next]
	f.next++

	return page, nil
}

func nativePayment(hash, from, to, amount string) operations.Payment {
	return operations.Payment{
		Base:   operations.Base{TransactionHash: hash},
		Asset:  base.Asset{Type: "native"},
		From:   from,
		To:     to,
		Amount: amount,
	}
}

func pageOf(records ...operations.Operation) operations.OperationsPage {
	var page operations.OperationsPage

	page.Embedded.Records = records

	return page
}

func TestIncomingPaymentsFollowsPagingCursor(t *testing.T) {
	t.Parallel()

	horizon := &fakeHorizon{pages: []operations.OperationsPage{
		pageOf(
			nativePayment("hash-5", "GSENDER", "GESCROW", "50"),
			nativePayment("hash-4", "GSENDER", "GESCROW", "40"),
		),
		pageOf(
			nativePayment("hash-3", "GSENDER", "GESCROW", "30"),
			nativePayment("hash-2", "GSENDER", "GESCROW", "20"),
			nativePayment("hash-1", "GSENDER", "GESCROW", "10"),
		),
	}}
	client := &Client{horizon: horizon}

	received, err := client.IncomingPayments(context.Background(), "GESCROW", NativeAsset(), "hash-2")
	require.NoError(t, err)

	// The cutoff sat on the second page. Everything newer than it is
	// returned, the cutoff itself and anything older are not.
	require.Len(t, received, 3)
	assert.Equal(t, "hash-5", received[0].TxHash)
	assert.Equal(t, "hash-4", received[1].TxHash)
	assert.Equal(t, "hash-3", received[2].TxHash)
	assert.Equal(t, "30", received[2].Amount.String())
}

func TestIncomingPaymentsWalksFullHistoryWithoutCutoff(t *testing.T) {
	t.Parallel()

	horizon := &fakeHorizon{pages: []operations.OperationsPage{
		pageOf(nativePayment("hash-2", "GSENDER", "GESCROW", "20")),
		pageOf(nativePayment("hash-1", "GSENDER", "GESCROW", "10")),
	}}
	client := &Client{horizon: horizon}

	received, err := client.IncomingPayments(context.Background(), "GESCROW", NativeAsset(), "")
	require.NoError(t, err)

	require.Len(t, received, 2)
	assert.Equal(t, "hash-2", received[0].TxHash)
	assert.Equal(t, "hash-1", received[1].TxHash)
}

func TestIncomingPaymentsFiltersAndStopsOnAnyRecordKind(t *testing.T) {
	t.Parallel()

	horizon := &fakeHorizon{pages: []operations.OperationsPage{
		pageOf(
			nativePayment("hash-4", "GSENDER", "GESCROW", "40"),
			// Outgoing transfer from the watched account.
			nativePayment("hash-3", "GESCROW", "GSENDER", "30"),
			// The cutoff transaction held no payment at all.
			operations.CreateAccount{Base: operations.Base{TransactionHash: "hash-2"}},
			nativePayment("hash-1", "GSENDER", "GESCROW", "10"),
		),
	}}
	client := &Client{horizon: horizon}

	received, err := client.IncomingPayments(context.Background(), "GESCROW", NativeAsset(), "hash-2")
	require.NoError(t, err)

	require.Len(t, received, 1)
	assert.Equal(t, "hash-4", received[0].TxHash)
}
