package ledger

import (
	"context"
	"fmt"

	"github.com/bountybase/engine/engine"
	"github.com/bountybase/engine/engine/log"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/protocols/horizon/effects"
	"github.com/stellar/go/txnbuild"
)

const (
	// newWalletStartingBalance funds the base reserve plus room for one
	// trustline on a freshly created wallet.
	newWalletStartingBalance = "2"

	// pathPaymentDestMin accepts any conversion rate; the credited amount is
	// read back from the transaction's effects, never assumed from a quote.
	pathPaymentDestMin = "0.0000001"

	txTimeout = 300
)

// Config holds the connection parameters for the Stellar network.
type Config struct {
	HorizonURL        string
	NetworkPassphrase string
	// MasterSeed is the secret seed of the master account that funds new
	// wallets.
	MasterSeed string
	BaseFee    int64
}

// ConfigFromEnv builds a Config from the HORIZON_URL, NETWORK_PASSPHRASE, and
// MASTER_WALLET_SEED environment variables, defaulting to testnet.
func ConfigFromEnv() Config {
	return Config{
		HorizonURL:        engine.GetenvOrDefault("HORIZON_URL", "https://horizon-testnet.stellar.org"),
		NetworkPassphrase: engine.GetenvOrDefault("NETWORK_PASSPHRASE", network.TestNetworkPassphrase),
		MasterSeed:        engine.GetenvOrDefault("MASTER_WALLET_SEED", ""),
		BaseFee:           int64(engine.GetenvIntOrDefault("LEDGER_BASE_FEE", int(txnbuild.MinBaseFee))),
	}
}

// Client talks to Horizon. Every method is a single network round trip;
// retries and circuit breaking belong to the escrow orchestrator above it.
type Client struct {
	horizon    horizonclient.ClientInterface
	passphrase string
	master     *keypair.Full
	baseFee    int64
	logger     log.Logger
}

// New builds a ledger client.
func New(cfg Config, logger log.Logger) (*Client, error) {
	if cfg.HorizonURL == "" {
		return nil, fmt.Errorf("horizon url is required")
	}

	if cfg.MasterSeed == "" {
		return nil, fmt.Errorf("master wallet seed is required")
	}

	master, err := keypair.ParseFull(cfg.MasterSeed)
	if err != nil {
		return nil, fmt.Errorf("parse master seed: %w", err)
	}

	passphrase := cfg.NetworkPassphrase
	if passphrase == "" {
		passphrase = network.TestNetworkPassphrase
	}

	baseFee := cfg.BaseFee
	if baseFee <= 0 {
		baseFee = txnbuild.MinBaseFee
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Client{
		horizon:    &horizonclient.Client{HorizonURL: cfg.HorizonURL},
		passphrase: passphrase,
		master:     master,
		baseFee:    baseFee,
		logger:     logger,
	}, nil
}

// Probe checks Horizon reachability.
func (c *Client) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.horizon.Root()
	if err != nil {
		return classify(err)
	}

	return nil
}

// CreateWallet funds a new keypair from the master account. The raw secret
// seed is returned for the caller to encrypt; it is never retained here.
func (c *Client) CreateWallet(ctx context.Context) (address, seed, txHash string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", "", err
	}

	wallet, err := keypair.Random()
	if err != nil {
		return "", "", "", fmt.Errorf("generate keypair: %w", err)
	}

	sourceAccount, err := c.account(c.master.Address())
	if err != nil {
		return "", "", "", err
	}

	tx, err := c.buildAndSign(&sourceAccount, []txnbuild.Operation{
		&txnbuild.CreateAccount{
			Destination: wallet.Address(),
			Amount:      newWalletStartingBalance,
		},
	}, c.master)
	if err != nil {
		return "", "", "", err
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		return "", "", "", classify(err)
	}

	c.logger.Infof("Created wallet %s (tx %s)", wallet.Address(), resp.Hash)

	return wallet.Address(), wallet.Seed(), resp.Hash, nil
}

// EstablishTrustline declares the wallet's willingness to hold asset, with
// the wallet paying the fee.
func (c *Client) EstablishTrustline(ctx context.Context, seed string, asset Asset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wallet, err := keypair.ParseFull(seed)
	if err != nil {
		return "", fmt.Errorf("parse wallet seed: %w", err)
	}

	sourceAccount, err := c.account(wallet.Address())
	if err != nil {
		return "", err
	}

	tx, err := c.buildAndSign(&sourceAccount, []txnbuild.Operation{
		changeTrustOp(asset, ""),
	}, wallet)
	if err != nil {
		return "", err
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		return "", classify(err)
	}

	return resp.Hash, nil
}

// EstablishTrustlineSponsored declares the trustline with the sponsor paying
// both the fee and the trustline reserve. Both signatures are required.
func (c *Client) EstablishTrustlineSponsored(ctx context.Context, sponsorSeed, seed string, asset Asset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sponsor, err := keypair.ParseFull(sponsorSeed)
	if err != nil {
		return "", fmt.Errorf("parse sponsor seed: %w", err)
	}

	wallet, err := keypair.ParseFull(seed)
	if err != nil {
		return "", fmt.Errorf("parse wallet seed: %w", err)
	}

	sourceAccount, err := c.account(sponsor.Address())
	if err != nil {
		return "", err
	}

	tx, err := c.buildAndSign(&sourceAccount, []txnbuild.Operation{
		&txnbuild.BeginSponsoringFutureReserves{
			SponsoredID:   wallet.Address(),
			SourceAccount: sponsor.Address(),
		},
		changeTrustOp(asset, wallet.Address()),
		&txnbuild.EndSponsoringFutureReserves{
			SourceAccount: wallet.Address(),
		},
	}, sponsor, wallet)
	if err != nil {
		return "", err
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		return "", classify(err)
	}

	return resp.Hash, nil
}

// Transfer moves amount of sendAsset from the source wallet to toAddress.
// Same-asset transfers are a direct payment; cross-asset transfers are a
// path payment converting sendAsset to receiveAsset atomically at
// submission time.
func (c *Client) Transfer(ctx context.Context, fromSeed, toAddress string, sendAsset, receiveAsset Asset, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	from, err := keypair.ParseFull(fromSeed)
	if err != nil {
		return "", fmt.Errorf("parse source seed: %w", err)
	}

	sourceAccount, err := c.account(from.Address())
	if err != nil {
		return "", err
	}

	tx, err := c.buildAndSign(&sourceAccount, []txnbuild.Operation{
		transferOp(toAddress, sendAsset, receiveAsset, amount),
	}, from)
	if err != nil {
		return "", err
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		return "", classify(err)
	}

	return resp.Hash, nil
}

// TransferViaSponsor builds the same transfer, signs it with the source, then
// wraps it in a fee bump paid by the sponsor. It returns the inner
// transaction hash and the fee-bump hash.
func (c *Client) TransferViaSponsor(ctx context.Context, sponsorSeed, fromSeed, toAddress string, sendAsset, receiveAsset Asset, amount decimal.Decimal) (txHash, sponsorTxHash string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	sponsor, err := keypair.ParseFull(sponsorSeed)
	if err != nil {
		return "", "", fmt.Errorf("parse sponsor seed: %w", err)
	}

	from, err := keypair.ParseFull(fromSeed)
	if err != nil {
		return "", "", fmt.Errorf("parse source seed: %w", err)
	}

	sourceAccount, err := c.account(from.Address())
	if err != nil {
		return "", "", err
	}

	inner, err := c.buildAndSign(&sourceAccount, []txnbuild.Operation{
		transferOp(toAddress, sendAsset, receiveAsset, amount),
	}, from)
	if err != nil {
		return "", "", err
	}

	innerHash, err := inner.HashHex(c.passphrase)
	if err != nil {
		return "", "", fmt.Errorf("hash inner transaction: %w", err)
	}

	feeBump, err := txnbuild.NewFeeBumpTransaction(txnbuild.FeeBumpTransactionParams{
		Inner:      inner,
		FeeAccount: sponsor.Address(),
		BaseFee:    c.baseFee * 2,
	})
	if err != nil {
		return "", "", fmt.Errorf("build fee bump: %w", err)
	}

	feeBump, err = feeBump.Sign(c.passphrase, sponsor)
	if err != nil {
		return "", "", fmt.Errorf("sign fee bump: %w", err)
	}

	resp, err := c.horizon.SubmitFeeBumpTransaction(feeBump)
	if err != nil {
		return "", "", classify(err)
	}

	return innerHash, resp.Hash, nil
}

// Swap converts amount of fromAsset into toAsset on the wallet's own
// account. The received amount is read back from the transaction's effects.
func (c *Client) Swap(ctx context.Context, seed string, amount decimal.Decimal, fromAsset, toAsset Asset) (string, decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return "", decimal.Zero, err
	}

	wallet, err := keypair.ParseFull(seed)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("parse wallet seed: %w", err)
	}

	sourceAccount, err := c.account(wallet.Address())
	if err != nil {
		return "", decimal.Zero, err
	}

	tx, err := c.buildAndSign(&sourceAccount, []txnbuild.Operation{
		&txnbuild.PathPaymentStrictSend{
			SendAsset:   fromAsset.toTxnbuild(),
			SendAmount:  amount.String(),
			Destination: wallet.Address(),
			DestAsset:   toAsset.toTxnbuild(),
			DestMin:     pathPaymentDestMin,
		},
	}, wallet)
	if err != nil {
		return "", decimal.Zero, err
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		return "", decimal.Zero, classify(err)
	}

	received, err := c.creditedAmount(resp.Hash, wallet.Address(), toAsset)
	if err != nil {
		return resp.Hash, decimal.Zero, err
	}

	return resp.Hash, received, nil
}

// Balance returns the wallet's balance in the given asset. A missing
// trustline reads as zero.
func (c *Client) Balance(ctx context.Context, address string, asset Asset) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	account, err := c.account(address)
	if err != nil {
		return decimal.Zero, err
	}

	for _, balance := range account.Balances {
		if !balanceMatches(balance, asset) {
			continue
		}

		parsed, err := decimal.NewFromString(balance.Balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse balance %q: %w", balance.Balance, err)
		}

		return parsed, nil
	}

	return decimal.Zero, nil
}

func (c *Client) account(address string) (hProtocol.Account, error) {
	account, err := c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		return hProtocol.Account{}, classify(err)
	}

	return account, nil
}

func (c *Client) buildAndSign(sourceAccount txnbuild.Account, ops []txnbuild.Operation, signers ...*keypair.Full) (*txnbuild.Transaction, error) {
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        sourceAccount,
		IncrementSequenceNum: true,
		Operations:           ops,
		BaseFee:              c.baseFee,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(txTimeout),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	tx, err = tx.Sign(c.passphrase, signers...)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	return tx, nil
}

// creditedAmount reads the post-submission effect log and returns the amount
// credited to address in asset.
func (c *Client) creditedAmount(txHash, address string, asset Asset) (decimal.Decimal, error) {
	page, err := c.horizon.Effects(horizonclient.EffectRequest{ForTransaction: txHash})
	if err != nil {
		return decimal.Zero, classify(err)
	}

	for _, record := range page.Embedded.Records {
		credited, ok := record.(effects.AccountCredited)
		if !ok {
			continue
		}

		if credited.GetAccount() != address {
			continue
		}

		if !effectAssetMatches(credited.Asset, asset) {
			continue
		}

		parsed, err := decimal.NewFromString(credited.Amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse credited amount %q: %w", credited.Amount, err)
		}

		return parsed, nil
	}

	return decimal.Zero, fmt.Errorf("no credit effect found for %s in transaction %s", asset, txHash)
}

func changeTrustOp(asset Asset, sourceAccount string) *txnbuild.ChangeTrust {
	return &txnbuild.ChangeTrust{
		Line: txnbuild.ChangeTrustAssetWrapper{
			Asset: txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer},
		},
		Limit:         txnbuild.MaxTrustlineLimit,
		SourceAccount: sourceAccount,
	}
}

func transferOp(toAddress string, sendAsset, receiveAsset Asset, amount decimal.Decimal) txnbuild.Operation {
	if sendAsset.Equals(receiveAsset) {
		return &txnbuild.Payment{
			Destination: toAddress,
			Amount:      amount.String(),
			Asset:       sendAsset.toTxnbuild(),
		}
	}

	return &txnbuild.PathPaymentStrictSend{
		SendAsset:   sendAsset.toTxnbuild(),
		SendAmount:  amount.String(),
		Destination: toAddress,
		DestAsset:   receiveAsset.toTxnbuild(),
		DestMin:     pathPaymentDestMin,
	}
}

func balanceMatches(balance hProtocol.Balance, asset Asset) bool {
	if asset.IsNative() {
		return balance.Asset.Type == "native"
	}

	return balance.Asset.Code == asset.Code && balance.Asset.Issuer == asset.Issuer
}

func effectAssetMatches(effectAsset base.Asset, asset Asset) bool {
	if asset.IsNative() {
		return effectAsset.Type == "native"
	}

	return effectAsset.Code == asset.Code && effectAsset.Issuer == asset.Issuer
}
