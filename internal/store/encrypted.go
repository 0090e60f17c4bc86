package store

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/bizsim/agegate/internal/models"
	"github.com/bizsim/agegate/internal/util/logger"
)

const (
	// kdfSalt is application-specific; it namespaces derived keys so the
	// install identifier cannot be reused against another product's payloads.
	kdfSalt = "com.bizsim.agegate.cache.v1"

	// kdfIterations bounds derivation latency on low-end hardware. The
	// identifier already carries 256 bits of entropy, so the count is a
	// latency trade-off, not the security boundary.
	kdfIterations = 10000

	keyLen        = 32 // AES-256
	identifierLen = 32
)

// Encrypted persists the flag record encrypted under a key derived from a
// per-install secret. The secret identifier is generated once, stored in the
// clear (its compromise is no worse than an attacker already controlling the
// device), and survives Clear so later saves keep encrypting under the same
// key. Any decryption or decoding failure on load degrades to a cache miss.
type Encrypted struct {
	kv KV

	mu  sync.Mutex
	key []byte // derived once per adapter lifetime to avoid repeated KDF cost
}

func NewEncrypted(kv KV) *Encrypted {
	return &Encrypted{kv: kv}
}

func (e *Encrypted) Load(ctx context.Context) (*models.RestrictionFlags, error) {
	raw, err := e.kv.Get(ctx, flagsKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load flags: %w", err)
	}
	key, err := e.deriveKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	plaintext, err := decrypt(key, raw)
	if err != nil {
		// Bad padding, truncated input, wrong key: all indistinguishable
		// from corruption, all mapped to a miss.
		logger.Warn("encrypted store: discarding undecryptable cache record: %v", err)
		return nil, nil
	}
	var flags models.RestrictionFlags
	if err := json.Unmarshal(plaintext, &flags); err != nil {
		logger.Warn("encrypted store: discarding unparsable cache record: %v", err)
		return nil, nil
	}
	return &flags, nil
}

func (e *Encrypted) Save(ctx context.Context, flags models.RestrictionFlags) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	key, err := e.deriveKey(ctx)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	encoded, err := encrypt(key, data)
	if err != nil {
		return fmt.Errorf("encrypt flags: %w", err)
	}
	if err := e.kv.Set(ctx, flagsKey, encoded); err != nil {
		return fmt.Errorf("save flags: %w", err)
	}
	return nil
}

// Clear removes the payload but keeps the install key identifier: the next
// Save must encrypt under the same key. The identifier only disappears with
// a full storage wipe, which also destroys the payload it protects.
func (e *Encrypted) Clear(ctx context.Context) error {
	if err := e.kv.Delete(ctx, flagsKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear flags: %w", err)
	}
	return nil
}

// deriveKey loads or creates the install identifier and runs it through the
// KDF, caching the result for the adapter's lifetime.
func (e *Encrypted) deriveKey(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.key != nil {
		return e.key, nil
	}
	id, err := e.kv.Get(ctx, keyIDKey)
	if errors.Is(err, ErrNotFound) || (err == nil && id == "") {
		id, err = newInstallIdentifier()
		if err != nil {
			return nil, err
		}
		if err := e.kv.Set(ctx, keyIDKey, id); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	e.key = pbkdf2.Key([]byte(id), []byte(kdfSalt), kdfIterations, keyLen, sha256.New)
	return e.key, nil
}

func newInstallIdentifier() (string, error) {
	b := make([]byte, identifierLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate install identifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// encrypt produces base64(IV || AES-256-CBC(PKCS#7(plaintext))) with a fresh
// random IV per write.
func encrypt(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func decrypt(key []byte, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, errors.New("truncated ciphertext")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
