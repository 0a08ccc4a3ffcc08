package booking

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildbook/models"
)

func newTestCodec(t *testing.T) *StateDataCodec {
	t.Helper()
	codec, err := NewStateDataCodec("test-encryption-secret")
	require.NoError(t, err)
	return codec
}

func TestNewStateDataCodecRejectsEmptySecret(t *testing.T) {
	_, err := NewStateDataCodec("")
	require.Error(t, err)
}

func TestEncryptionRoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	data := models.BookingStateData{
		StripeSessionID:       "cs_test_a1b2c3d4e5",
		StripePaymentIntentID: "pi_3OebES2eZvKYlo2C",
		SessionTypeID:         "st-123",
	}

	encrypted, err := codec.EncryptSensitiveData(data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted.StripeSessionID, "v1:"))
	assert.True(t, strings.HasPrefix(encrypted.StripePaymentIntentID, "v1:"))
	assert.NotEqual(t, data.StripeSessionID, encrypted.StripeSessionID)
	assert.NotEqual(t, data.StripePaymentIntentID, encrypted.StripePaymentIntentID)
	// Non-sensitive fields pass through untouched.
	assert.Equal(t, "st-123", encrypted.SessionTypeID)

	decrypted, err := codec.DecryptSensitiveData(encrypted)
	require.NoError(t, err)
	assert.Equal(t, data.StripeSessionID, decrypted.StripeSessionID)
	assert.Equal(t, data.StripePaymentIntentID, decrypted.StripePaymentIntentID)
}

func TestEncryptIsNoOpOnEnvelopedValues(t *testing.T) {
	codec := newTestCodec(t)
	data := models.BookingStateData{StripeSessionID: "cs_test_a1b2c3d4e5"}

	once, err := codec.EncryptSensitiveData(data)
	require.NoError(t, err)
	twice, err := codec.EncryptSensitiveData(once)
	require.NoError(t, err)
	assert.Equal(t, once.StripeSessionID, twice.StripeSessionID)

	decrypted, err := codec.DecryptSensitiveData(twice)
	require.NoError(t, err)
	assert.Equal(t, data.StripeSessionID, decrypted.StripeSessionID)
}

func TestEncryptSkipsEmptyFields(t *testing.T) {
	codec := newTestCodec(t)
	encrypted, err := codec.EncryptSensitiveData(models.BookingStateData{})
	require.NoError(t, err)
	assert.Empty(t, encrypted.StripeSessionID)
	assert.Empty(t, encrypted.StripePaymentIntentID)
}

func TestDecryptMixedRecord(t *testing.T) {
	codec := newTestCodec(t)
	encrypted, err := codec.EncryptSensitiveData(models.BookingStateData{
		StripeSessionID: "cs_test_a1b2c3d4e5",
	})
	require.NoError(t, err)
	// One field encrypted, the other still legacy plaintext.
	encrypted.StripePaymentIntentID = "pi_plaintext_legacy"

	decrypted, err := codec.DecryptSensitiveData(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_a1b2c3d4e5", decrypted.StripeSessionID)
	assert.Equal(t, "pi_plaintext_legacy", decrypted.StripePaymentIntentID)
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	codec := newTestCodec(t)
	_, err := codec.DecryptSensitiveData(models.BookingStateData{
		StripeSessionID: "v1:not-base64",
	})
	require.Error(t, err)

	_, err = codec.DecryptSensitiveData(models.BookingStateData{
		StripeSessionID: "v1:QUJD:QUJD:extra",
	})
	require.Error(t, err)
}

func TestSanitizeForLoggingNeverLeaks(t *testing.T) {
	codec := newTestCodec(t)
	sessionID := "cs_test_a1b2c3d4e5"
	intentID := "pi_3OebES2eZvKYlo2C"
	data := models.BookingStateData{
		StripeSessionID:       sessionID,
		StripePaymentIntentID: intentID,
		SessionTypeID:         "st-123",
	}

	sanitized := codec.SanitizeForLogging(data)
	serialized, err := json.Marshal(sanitized)
	require.NoError(t, err)

	assert.NotContains(t, string(serialized), sessionID)
	assert.NotContains(t, string(serialized), intentID)
	assert.Equal(t, "cs_t****d4e5", sanitized.StripeSessionID)
	assert.Equal(t, "pi_3****lo2C", sanitized.StripePaymentIntentID)
	assert.Equal(t, "st-123", sanitized.SessionTypeID)
}

func TestSanitizeFullyMasksShortValues(t *testing.T) {
	codec := newTestCodec(t)
	sanitized := codec.SanitizeForLogging(models.BookingStateData{StripeSessionID: "short"})
	assert.Equal(t, "********", sanitized.StripeSessionID)
	assert.NotContains(t, sanitized.StripeSessionID, "short")

	sanitized = codec.SanitizeForLogging(models.BookingStateData{})
	assert.Empty(t, sanitized.StripeSessionID)
}

func TestCodecsWithDifferentSecretsDoNotInterop(t *testing.T) {
	a, err := NewStateDataCodec("secret-a")
	require.NoError(t, err)
	b, err := NewStateDataCodec("secret-b")
	require.NoError(t, err)

	encrypted, err := a.EncryptSensitiveData(models.BookingStateData{StripeSessionID: "cs_test_a1b2c3d4e5"})
	require.NoError(t, err)
	_, err = b.DecryptSensitiveData(encrypted)
	require.Error(t, err)
}
