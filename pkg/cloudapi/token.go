package cloudapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const cursorVersion = 1

var (
	ErrTokenMalformed = errors.New("malformed continuation token")
	ErrTokenSignature = errors.New("continuation token signature mismatch")
	ErrTokenVersion   = errors.New("unsupported continuation token version")
	ErrTokenFilters   = errors.New("continuation token was issued for a different set of filters")
)

// Cursor is the position a paginated listing resumes after.
type Cursor struct {
	Version     int       `json:"v"`
	Fingerprint string    `json:"fp"`
	Created     time.Time `json:"created"`
	ID          string    `json:"id"`
}

// TokenCodec turns cursors into opaque, signed continuation tokens and back.
// It is safe for concurrent use.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a codec signing tokens with secret.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty continuation token secret")
	}

	return &TokenCodec{
		secret: bytes.Clone(secret),
	}, nil
}

// RandomSecret returns a new random token secret.
// Tokens signed with it do not survive a restart and are not accepted by other replicas.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	return secret, nil
}

func (c *TokenCodec) sign(payload string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// Encode returns a continuation token for cursor.
func (c *TokenCodec) Encode(cursor Cursor) (string, error) {
	cursor.Version = cursorVersion
	cursor.Created = cursor.Created.UTC()

	raw, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}

	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + base64.RawURLEncoding.EncodeToString(c.sign(payload)), nil
}

// Decode verifies a continuation token and returns its cursor.
// The token must have been issued for a query with the given filter fingerprint.
// All failures are reported as [InvalidToken] errors.
func (c *TokenCodec) Decode(token, fingerprint string) (Cursor, error) {
	cursor, err := c.decode(token)
	if err == nil && cursor.Fingerprint != fingerprint {
		err = ErrTokenFilters
	}
	if err != nil {
		return Cursor{}, NewError(InvalidToken, err, "%v, restart listing from the first page", err)
	}

	return cursor, nil
}

func (c *TokenCodec) decode(token string) (Cursor, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" {
		return Cursor{}, ErrTokenMalformed
	}

	givenSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return Cursor{}, ErrTokenMalformed
	}
	if !hmac.Equal(givenSig, c.sign(payload)) {
		return Cursor{}, ErrTokenSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Cursor{}, ErrTokenMalformed
	}

	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return Cursor{}, ErrTokenMalformed
	}
	if cursor.Version != cursorVersion {
		return Cursor{}, ErrTokenVersion
	}
	if cursor.ID == "" {
		return Cursor{}, ErrTokenMalformed
	}

	return cursor, nil
}
