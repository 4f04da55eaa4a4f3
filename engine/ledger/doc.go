// Package ledger implements the client-side contract against the Stellar
// network: build an unsigned transaction, sign it with the required keypairs
// (source always, sponsor additionally for sponsored operations), submit it,
// and map the response to either a transaction hash or a typed failure.
//
// Failures are classified into Rejection (the ledger refused the transaction
// and returned machine-readable result codes) and Unavailable (network or
// infrastructure trouble). Neither is swallowed; both are surfaced to the
// retry layer for classification.
package ledger
