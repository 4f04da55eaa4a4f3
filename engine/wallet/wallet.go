package wallet

import (
	"time"
)

// OwnerType identifies the kind of entity a wallet belongs to.
type OwnerType string

const (
	// OwnerUser marks a wallet owned by a user.
	OwnerUser OwnerType = "USER"
	// OwnerInstallation marks a wallet owned by an installation.
	OwnerInstallation OwnerType = "INSTALLATION"
)

// Kind distinguishes an owner's operating wallet from the escrow holding
// wallet an installation additionally owns.
type Kind string

const (
	// KindOperating is the owner's primary wallet.
	KindOperating Kind = "OPERATING"
	// KindEscrow is the installation's bounty holding wallet.
	KindEscrow Kind = "ESCROW"
)

// Wallet is a ledger account owned by exactly one user or installation. The
// secret key never appears here in the clear; SecretRef is the opaque
// encrypted reference issued by the key provider.
type Wallet struct {
	ID            string    `json:"id"`
	PublicAddress string    `json:"publicAddress"`
	SecretRef     string    `json:"-"`
	OwnerType     OwnerType `json:"ownerType"`
	OwnerID       string    `json:"ownerId"`
	Kind          Kind      `json:"kind"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FundSource is the polymorphic capability consumed by the escrow
// orchestrator: any wallet that can fund a ledger operation, regardless of
// whether a user or an installation owns it. It is resolved once at the
// request boundary and consumed uniformly below it.
type FundSource interface {
	Address() string
	SecretRef() string
}

// Source is the canonical FundSource implementation.
type Source struct {
	Addr   string
	Secret string // opaque encrypted secret reference
}

// Address implements FundSource.
func (s Source) Address() string { return s.Addr }

// SecretRef implements FundSource.
func (s Source) SecretRef() string { return s.Secret }

// Source resolves the wallet into the FundSource consumed by the
// orchestrator.
func (w *Wallet) Source() Source {
	return Source{Addr: w.PublicAddress, Secret: w.SecretRef}
}
