package escrow

import (
	"context"
	"fmt"

	"github.com/bountybase/engine/engine/circuitbreaker"
	"github.com/bountybase/engine/engine/ledger"
	"github.com/bountybase/engine/engine/log"
	"github.com/bountybase/engine/engine/retry"
	"github.com/bountybase/engine/engine/wallet"
	"github.com/shopspring/decimal"
)

// LedgerAPI is the slice of the ledger client the orchestrator consumes.
// *ledger.Client implements it.
type LedgerAPI interface {
	CreateWallet(ctx context.Context) (address, seed, txHash string, err error)
	EstablishTrustline(ctx context.Context, seed string, asset ledger.Asset) (string, error)
	EstablishTrustlineSponsored(ctx context.Context, sponsorSeed, seed string, asset ledger.Asset) (string, error)
	Transfer(ctx context.Context, fromSeed, toAddress string, sendAsset, receiveAsset ledger.Asset, amount decimal.Decimal) (string, error)
	TransferViaSponsor(ctx context.Context, sponsorSeed, fromSeed, toAddress string, sendAsset, receiveAsset ledger.Asset, amount decimal.Decimal) (txHash, sponsorTxHash string, err error)
	Swap(ctx context.Context, seed string, amount decimal.Decimal, fromAsset, toAsset ledger.Asset) (string, decimal.Decimal, error)
	Balance(ctx context.Context, address string, asset ledger.Asset) (decimal.Decimal, error)
	HasAssetSupport(ctx context.Context, address string, asset ledger.Asset) (bool, error)
	IncomingPayments(ctx context.Context, address string, asset ledger.Asset, sinceTxHash string) ([]ledger.Payment, error)
	Probe(ctx context.Context) error
}

// CreatedWallet is the result of CreateWallet: the funded address, the
// encrypted secret reference, and the funding transaction hash.
type CreatedWallet struct {
	Address   string
	SecretRef string
	TxHash    string
}

// SponsoredTransfer is the result of TransferViaSponsor: the inner transfer
// hash and the sponsor's fee-bump hash.
type SponsoredTransfer struct {
	TxHash        string
	SponsorTxHash string
}

// SwapResult is the result of Swap. Received is read back from the ledger's
// effect log.
type SwapResult struct {
	TxHash   string
	Received decimal.Decimal
}

// Orchestrator builds and submits the canonical fund-movement operations
// through the resilience layer.
type Orchestrator struct {
	ledger     LedgerAPI
	keys       wallet.KeyProvider
	ledgerExec *retry.Executor
	keysExec   *retry.Executor
	logger     log.Logger
}

// NewOrchestrator wires the orchestrator with preset executors for the
// ledger and key-service dependencies.
func NewOrchestrator(api LedgerAPI, keys wallet.KeyProvider, breakers circuitbreaker.Manager, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Orchestrator{
		ledger:     api,
		keys:       keys,
		ledgerExec: retry.Ledger(breakers, logger),
		keysExec:   retry.KeyService(breakers, logger),
		logger:     logger,
	}
}

// CreateWallet funds a new keypair from the master account and returns the
// encrypted secret reference. The raw seed only exists between the ledger
// call and the encrypt call.
func (o *Orchestrator) CreateWallet(ctx context.Context) (CreatedWallet, error) {
	type created struct {
		address string
		seed    string
		txHash  string
	}

	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		address, seed, txHash, err := o.ledger.CreateWallet(ctx)
		if err != nil {
			return nil, err
		}

		return created{address: address, seed: seed, txHash: txHash}, nil
	})
	if err != nil {
		return CreatedWallet{}, err
	}

	funded := result.(created)

	secretRef, err := o.encrypt(ctx, funded.seed)
	if err != nil {
		return CreatedWallet{}, fmt.Errorf("encrypt wallet secret: %w", err)
	}

	return CreatedWallet{
		Address:   funded.address,
		SecretRef: secretRef,
		TxHash:    funded.txHash,
	}, nil
}

// EstablishAssetSupport declares the source wallet's willingness to hold
// asset. When sponsor is non-nil the sponsor pays the reserve and fee.
func (o *Orchestrator) EstablishAssetSupport(ctx context.Context, source wallet.FundSource, asset ledger.Asset, sponsor wallet.FundSource) (string, error) {
	seed, err := o.decrypt(ctx, source.SecretRef())
	if err != nil {
		return "", err
	}

	var sponsorSeed string
	if sponsor != nil {
		sponsorSeed, err = o.decrypt(ctx, sponsor.SecretRef())
		if err != nil {
			return "", err
		}
	}

	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		if sponsor != nil {
			return o.ledger.EstablishTrustlineSponsored(ctx, sponsorSeed, seed, asset)
		}

		return o.ledger.EstablishTrustline(ctx, seed, asset)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// Transfer moves amount from the source wallet to toAddress. Same-asset
// transfers use a direct payment; cross-asset transfers use a path payment.
func (o *Orchestrator) Transfer(ctx context.Context, from wallet.FundSource, toAddress string, sendAsset, receiveAsset ledger.Asset, amount decimal.Decimal) (string, error) {
	seed, err := o.decrypt(ctx, from.SecretRef())
	if err != nil {
		return "", err
	}

	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		return o.ledger.Transfer(ctx, seed, toAddress, sendAsset, receiveAsset, amount)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// TransferViaSponsor builds the transfer, signs it with the source, and
// wraps it in a fee bump paid by the sponsor.
func (o *Orchestrator) TransferViaSponsor(ctx context.Context, sponsor, from wallet.FundSource, toAddress string, sendAsset, receiveAsset ledger.Asset, amount decimal.Decimal) (SponsoredTransfer, error) {
	sponsorSeed, err := o.decrypt(ctx, sponsor.SecretRef())
	if err != nil {
		return SponsoredTransfer{}, err
	}

	seed, err := o.decrypt(ctx, from.SecretRef())
	if err != nil {
		return SponsoredTransfer{}, err
	}

	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		txHash, sponsorTxHash, err := o.ledger.TransferViaSponsor(ctx, sponsorSeed, seed, toAddress, sendAsset, receiveAsset, amount)
		if err != nil {
			return nil, err
		}

		return SponsoredTransfer{TxHash: txHash, SponsorTxHash: sponsorTxHash}, nil
	})
	if err != nil {
		return SponsoredTransfer{}, err
	}

	return result.(SponsoredTransfer), nil
}

// Swap converts amount of fromAsset into toAsset on the source wallet. The
// received amount comes from the ledger's post-submission effect log.
func (o *Orchestrator) Swap(ctx context.Context, from wallet.FundSource, amount decimal.Decimal, fromAsset, toAsset ledger.Asset) (SwapResult, error) {
	seed, err := o.decrypt(ctx, from.SecretRef())
	if err != nil {
		return SwapResult{}, err
	}

	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		txHash, received, err := o.ledger.Swap(ctx, seed, amount, fromAsset, toAsset)
		if err != nil {
			return nil, err
		}

		return SwapResult{TxHash: txHash, Received: received}, nil
	})
	if err != nil {
		return SwapResult{}, err
	}

	return result.(SwapResult), nil
}

// Balance reads the address's balance in asset.
func (o *Orchestrator) Balance(ctx context.Context, address string, asset ledger.Asset) (decimal.Decimal, error) {
	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		return o.ledger.Balance(ctx, address, asset)
	})
	if err != nil {
		return decimal.Zero, err
	}

	return result.(decimal.Decimal), nil
}

// HasAssetSupport reports whether address already declared support for
// asset.
func (o *Orchestrator) HasAssetSupport(ctx context.Context, address string, asset ledger.Asset) (bool, error) {
	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		return o.ledger.HasAssetSupport(ctx, address, asset)
	})
	if err != nil {
		return false, err
	}

	return result.(bool), nil
}

// IncomingPayments lists payments received by address in asset, newest
// first, strictly newer than sinceTxHash.
func (o *Orchestrator) IncomingPayments(ctx context.Context, address string, asset ledger.Asset, sinceTxHash string) ([]ledger.Payment, error) {
	result, err := o.ledgerExec.Do(ctx, func(ctx context.Context) (any, error) {
		return o.ledger.IncomingPayments(ctx, address, asset, sinceTxHash)
	})
	if err != nil {
		return nil, err
	}

	return result.([]ledger.Payment), nil
}

// Probe checks ledger reachability without retries; recovery uses it as a
// health probe.
func (o *Orchestrator) Probe(ctx context.Context) error {
	return o.ledger.Probe(ctx)
}

func (o *Orchestrator) decrypt(ctx context.Context, secretRef string) (string, error) {
	result, err := o.keysExec.Do(ctx, func(ctx context.Context) (any, error) {
		return o.keys.Decrypt(ctx, secretRef)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

func (o *Orchestrator) encrypt(ctx context.Context, rawSecretKey string) (string, error) {
	result, err := o.keysExec.Do(ctx, func(ctx context.Context) (any, error) {
		return o.keys.Encrypt(ctx, rawSecretKey)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}
