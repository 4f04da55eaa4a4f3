package ledger

import (
	"github.com/stellar/go/txnbuild"
)

// Asset identifies a ledger asset. The zero Issuer marks the native asset.
type Asset struct {
	Code   string `json:"code"`
	Issuer string `json:"issuer,omitempty"`
}

// NativeAsset returns the native lumens asset.
func NativeAsset() Asset {
	return Asset{Code: "XLM"}
}

// IsNative reports whether the asset is the network's native asset.
func (a Asset) IsNative() bool {
	return a.Issuer == ""
}

// Equals reports whether two assets identify the same ledger asset.
func (a Asset) Equals(other Asset) bool {
	if a.IsNative() && other.IsNative() {
		return true
	}

	return a.Code == other.Code && a.Issuer == other.Issuer
}

// String renders the asset in code:issuer form ("XLM" for native).
func (a Asset) String() string {
	if a.IsNative() {
		return "XLM"
	}

	return a.Code + ":" + a.Issuer
}

func (a Asset) toTxnbuild() txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}

	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}
}
