package booking

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"buildbook/models"
)

// envelopePrefix versions the at-rest format of encrypted sensitive fields.
const envelopePrefix = "v1:"

const maskedPlaceholder = "********"

// StateDataCodec encrypts the sensitive payment identifiers inside booking
// state data and produces masked projections for logging. The AES-256-GCM key
// is derived once from the process-wide encryption secret; the codec is
// read-only after construction and safe for concurrent use.
type StateDataCodec struct {
	aead cipher.AEAD
}

// NewStateDataCodec derives the cipher key from secret via HKDF-SHA256 and
// returns a ready codec. An empty secret is a configuration error.
func NewStateDataCodec(secret string) (*StateDataCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("state data codec: encryption secret is empty")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("buildbook/state-data/v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("state data codec: failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("state data codec: failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("state data codec: failed to create GCM: %w", err)
	}
	return &StateDataCodec{aead: aead}, nil
}

// EncryptSensitiveData returns a copy of data with every non-empty sensitive
// field replaced by its versioned envelope. Values already carrying the
// envelope prefix are left untouched, so a double application cannot layer
// ciphertext.
func (c *StateDataCodec) EncryptSensitiveData(data models.BookingStateData) (models.BookingStateData, error) {
	var err error
	if data.StripeSessionID, err = c.encryptValue(data.StripeSessionID); err != nil {
		return data, fmt.Errorf("failed to encrypt stripe session id: %w", err)
	}
	if data.StripePaymentIntentID, err = c.encryptValue(data.StripePaymentIntentID); err != nil {
		return data, fmt.Errorf("failed to encrypt stripe payment intent id: %w", err)
	}
	return data, nil
}

// DecryptSensitiveData returns a copy of data with every enveloped sensitive
// field restored to plaintext. Values without the envelope prefix pass
// through unchanged, so mixed records (legacy plaintext next to encrypted
// fields) decode without error.
func (c *StateDataCodec) DecryptSensitiveData(data models.BookingStateData) (models.BookingStateData, error) {
	var err error
	if data.StripeSessionID, err = c.decryptValue(data.StripeSessionID); err != nil {
		return data, fmt.Errorf("failed to decrypt stripe session id: %w", err)
	}
	if data.StripePaymentIntentID, err = c.decryptValue(data.StripePaymentIntentID); err != nil {
		return data, fmt.Errorf("failed to decrypt stripe payment intent id: %w", err)
	}
	return data, nil
}

// SanitizeForLogging masks the sensitive fields of data so the result can be
// logged or serialized without leaking payment identifiers. It expects
// plaintext input; enveloped values are masked all the same.
func (c *StateDataCodec) SanitizeForLogging(data models.BookingStateData) models.BookingStateData {
	data.StripeSessionID = maskValue(data.StripeSessionID)
	data.StripePaymentIntentID = maskValue(data.StripePaymentIntentID)
	return data
}

func (c *StateDataCodec) encryptValue(plaintext string) (string, error) {
	if plaintext == "" || strings.HasPrefix(plaintext, envelopePrefix) {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return envelopePrefix +
		base64.StdEncoding.EncodeToString(nonce) + ":" +
		base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (c *StateDataCodec) decryptValue(value string) (string, error) {
	if !strings.HasPrefix(value, envelopePrefix) {
		return value, nil
	}
	parts := strings.Split(strings.TrimPrefix(value, envelopePrefix), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed encryption envelope")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed envelope nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed envelope ciphertext: %w", err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("malformed envelope nonce: unexpected length %d", len(nonce))
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plaintext), nil
}

// maskValue reduces a sensitive value to first4 + "****" + last4, or a full
// mask when the value is too short to keep any of it.
func maskValue(value string) string {
	if value == "" {
		return ""
	}
	if len(value) < 8 {
		return maskedPlaceholder
	}
	return value[:4] + "****" + value[len(value)-4:]
}
