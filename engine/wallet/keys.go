package wallet

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/bountybase/engine/engine"
)

// ErrMissingEncryptionKey indicates the key provider was built without key
// material.
var ErrMissingEncryptionKey = errors.New("wallet: encryption key is not configured")

// ErrMalformedSecretRef indicates a secret reference that the provider did
// not produce or that was corrupted.
var ErrMalformedSecretRef = errors.New("wallet: malformed secret reference")

// KeyProvider converts between raw secret seeds and opaque encrypted secret
// references. Rotation and versioning are out of scope; the pair is treated
// as a single opaque capability.
type KeyProvider interface {
	Encrypt(ctx context.Context, rawSecretKey string) (secretRef string, err error)
	Decrypt(ctx context.Context, secretRef string) (rawSecretKey string, err error)
}

const aesKeySize = 32

// AESKeyProvider is an AES-256-GCM implementation of KeyProvider with a
// single process-wide key.
type AESKeyProvider struct {
	key []byte
}

// NewAESKeyProvider builds a provider from a 32-byte key.
func NewAESKeyProvider(key []byte) (*AESKeyProvider, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("wallet: encryption key must be %d bytes, got %d", aesKeySize, len(key))
	}

	provider := &AESKeyProvider{key: make([]byte, aesKeySize)}
	copy(provider.key, key)

	return provider, nil
}

// NewAESKeyProviderFromEnv reads the base64-encoded key from
// WALLET_ENCRYPTION_KEY.
func NewAESKeyProviderFromEnv() (*AESKeyProvider, error) {
	encoded := engine.GetenvOrDefault("WALLET_ENCRYPTION_KEY", "")
	if encoded == "" {
		return nil, ErrMissingEncryptionKey
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode encryption key: %w", err)
	}

	return NewAESKeyProvider(key)
}

// Encrypt seals the raw secret key and returns a base64 secret reference.
func (p *AESKeyProvider) Encrypt(ctx context.Context, rawSecretKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	gcm, err := p.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("wallet: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(rawSecretKey), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a secret reference produced by Encrypt.
func (p *AESKeyProvider) Decrypt(ctx context.Context, secretRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	gcm, err := p.gcm()
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(secretRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSecretRef, err)
	}

	if len(sealed) < gcm.NonceSize() {
		return "", ErrMalformedSecretRef
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSecretRef, err)
	}

	return string(plaintext), nil
}

func (p *AESKeyProvider) gcm() (cipher.AEAD, error) {
	if len(p.key) != aesKeySize {
		return nil, ErrMissingEncryptionKey
	}

	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: init cipher: %w", err)
	}

	return cipher.NewGCM(block)
}
