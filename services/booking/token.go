package booking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"buildbook/models"
)

// StateTokenManager issues and verifies the bearer tokens that bind a booking
// id, a state name and a timestamp. Tokens are stateless: nothing is
// persisted, verification recomputes the HMAC tag and compares.
type StateTokenManager struct {
	key []byte
}

// NewStateTokenManager derives the signing key from the process-wide token
// secret. An empty secret is a configuration error.
func NewStateTokenManager(secret string) (*StateTokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("state token manager: signing secret is empty")
	}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("buildbook/state-token/v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("state token manager: failed to derive key: %w", err)
	}
	return &StateTokenManager{key: key}, nil
}

// Generate returns a base64 token asserting that bookingID was observed in
// state at the current time. The booking id must not contain the field
// separator.
func (m *StateTokenManager) Generate(bookingID string, state models.BookingState) (string, error) {
	if bookingID == "" {
		return "", fmt.Errorf("state token: booking id is empty")
	}
	if strings.Contains(bookingID, ":") {
		return "", fmt.Errorf("state token: booking id must not contain ':'")
	}
	payload := bookingID + ":" + string(state) + ":" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	token := payload + ":" + m.tag(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Verify decodes and checks a state token. Any defect (bad base64, wrong
// field count, tag mismatch) yields IsValid: false with no fields populated;
// verification never fails with an error.
func (m *StateTokenManager) Verify(token string) models.StateTokenResult {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return models.StateTokenResult{}
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 4 {
		return models.StateTokenResult{}
	}
	bookingID, state, tsField, tag := parts[0], parts[1], parts[2], parts[3]
	payload := bookingID + ":" + state + ":" + tsField
	if !hmac.Equal([]byte(tag), []byte(m.tag(payload))) {
		return models.StateTokenResult{}
	}
	millis, err := strconv.ParseInt(tsField, 10, 64)
	if err != nil {
		return models.StateTokenResult{}
	}
	return models.StateTokenResult{
		IsValid:   true,
		BookingID: bookingID,
		State:     models.BookingState(state),
		Timestamp: time.UnixMilli(millis).UTC(),
	}
}

func (m *StateTokenManager) tag(payload string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
