// Package wallet holds the wallet entity, the FundSource capability resolved
// once at the request boundary, and the key provider that converts between
// raw secret seeds and opaque encrypted secret references.
//
// Raw secret material is never cached; it lives only for the duration of the
// single operation that decrypted it.
package wallet
