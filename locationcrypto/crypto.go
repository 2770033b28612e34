package locationcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the symmetric key size in bytes (AES-256).
	KeySize = 32

	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12

	// kdfSalt and kdfInfo are fixed application constants. Changing either
	// changes every derived key, so they are part of the wire contract.
	kdfSalt = "famkit/location-sharing/v1"
	kdfInfo = "family-location-key"
)

var (
	// ErrInvalidInput is returned for an empty or malformed family identifier.
	ErrInvalidInput = errors.New("invalid family identifier")

	// ErrInvalidKey is returned when a key string does not decode to exactly
	// KeySize bytes.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrDecryptionFailed is returned when an envelope cannot be decrypted:
	// wrong key, tampered ciphertext, or undecodable envelope fields. A
	// wrong key is always observably rejected, never silently accepted.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrSerialization is returned when a location reading cannot be
	// losslessly encoded or decoded, e.g. NaN or out-of-range coordinates.
	ErrSerialization = errors.New("location serialization failed")
)

// LocationReading is the plaintext unit: a geographic position plus a
// free-form address string, possibly empty, possibly multi-byte text.
type LocationReading struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Validate checks that the coordinates are finite and within geographic
// range. Encodings of invalid readings are rejected rather than produced.
func (r LocationReading) Validate() error {
	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) ||
		math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrSerialization)
	}
	if r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrSerialization, r.Latitude)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrSerialization, r.Longitude)
	}
	return nil
}

// EncryptedEnvelope is the ciphertext unit: two base64 strings, opaque to
// callers. An envelope is meaningful only together with the family key that
// produced it; nothing in the envelope identifies which key it requires.
type EncryptedEnvelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// DeriveKey maps a family identifier to a 256-bit symmetric key, returned as
// a base64 string. The derivation is HKDF-SHA256 with the identifier as input
// keying material and fixed application salt/info strings: a pure function of
// its input, so any party that knows the identifier recomputes the identical
// key without ever storing it.
func DeriveKey(familyID string) (string, error) {
	if familyID == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrInvalidInput)
	}

	kdf := hkdf.New(sha256.New, []byte(familyID), []byte(kdfSalt), []byte(kdfInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return "", fmt.Errorf("key derivation failed: %w", err)
	}

	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt serializes a location reading and encrypts it under the given key
// with AES-256-GCM. Every call draws a fresh random IV, so two encryptions of
// identical plaintext under the same key never produce identical envelopes.
func Encrypt(reading LocationReading, key string) (EncryptedEnvelope, error) {
	keyBytes, err := decodeKey(key)
	if err != nil {
		return EncryptedEnvelope{}, err
	}

	if err := reading.Validate(); err != nil {
		return EncryptedEnvelope{}, err
	}

	// encoding/json emits the shortest representation that round-trips a
	// float64 exactly, so the canonical plaintext is lossless.
	plaintext, err := json.Marshal(reading)
	if err != nil {
		return EncryptedEnvelope{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	aead, err := newGCM(keyBytes)
	if err != nil {
		return EncryptedEnvelope{}, err
	}

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedEnvelope{}, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext := aead.Seal(nil, iv, plaintext, nil)

	return EncryptedEnvelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt reverses Encrypt under the matching key, reproducing the original
// reading exactly. Decryption under a wrong key fails the GCM integrity check
// and returns ErrDecryptionFailed rather than corrupted plaintext.
func Decrypt(envelope EncryptedEnvelope, key string) (LocationReading, error) {
	keyBytes, err := decodeKey(key)
	if err != nil {
		return LocationReading{}, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return LocationReading{}, fmt.Errorf("%w: undecodable ciphertext: %v", ErrDecryptionFailed, err)
	}

	iv, err := base64.StdEncoding.DecodeString(envelope.IV)
	if err != nil {
		return LocationReading{}, fmt.Errorf("%w: undecodable IV: %v", ErrDecryptionFailed, err)
	}
	if len(iv) != NonceSize {
		return LocationReading{}, fmt.Errorf("%w: IV must be %d bytes", ErrDecryptionFailed, NonceSize)
	}

	aead, err := newGCM(keyBytes)
	if err != nil {
		return LocationReading{}, err
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return LocationReading{}, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	var reading LocationReading
	if err := json.Unmarshal(plaintext, &reading); err != nil {
		return LocationReading{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return reading, nil
}

// decodeKey decodes and length-checks a base64 key string.
func decodeKey(key string) ([]byte, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64: %v", ErrInvalidKey, err)
	}
	if len(keyBytes) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(keyBytes))
	}
	return keyBytes, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return aead, nil
}
