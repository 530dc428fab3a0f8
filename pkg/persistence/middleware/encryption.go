package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
)

// encryptedPrefix marks an encrypted field value.
const encryptedPrefix = "enc:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.AuditStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts the assignee and reason of
// every record with AES-GCM. The identifying fields stay readable so trails can be listed.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.AuditStore) ports.AuditStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Append(ctx context.Context, record domain.AuditRecord) error {
	for _, f := range sealedFields(&record) {
		if *f == "" {
			continue
		}
		ciphertext, err := encrypt([]byte(*f), m.config.ActiveKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt record: %w", err)
		}
		*f = encryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext)
	}
	return m.next.Append(ctx, record)
}

// List decrypts every sealed field. A non-empty field without the prefix fails the call.
func (m *encryptionMiddleware) List(ctx context.Context, processInstanceID string) ([]domain.AuditRecord, error) {
	records, err := m.next.List(ctx, processInstanceID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		for _, f := range sealedFields(&records[i]) {
			if *f == "" {
				continue
			}
			encoded, ok := strings.CutPrefix(*f, encryptedPrefix)
			if !ok {
				return nil, fmt.Errorf("record %s is missing encrypted data", records[i].ID)
			}
			ciphertext, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
			}
			plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt record %s: %w", records[i].ID, err)
			}
			*f = string(plain)
		}
	}
	return records, nil
}

func sealedFields(r *domain.AuditRecord) []*string {
	return []*string{&r.Assignee, &r.Reason}
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

// ParseKey decodes a base64 AES-256 key as found in configuration.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key is %d bytes, want 32", len(key))
	}
	return key, nil
}
