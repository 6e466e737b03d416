package cloudapi_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/sre-norns/cloudapi/pkg/cloudapi"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, secret string) *cloudapi.TokenCodec {
	codec, err := cloudapi.NewTokenCodec([]byte(secret))
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodec(t *testing.T) {
	_, err := cloudapi.NewTokenCodec(nil)
	require.Error(t, err)

	secret, err := cloudapi.RandomSecret()
	require.NoError(t, err)
	require.Len(t, secret, 32)

	_, err = cloudapi.NewTokenCodec(secret)
	require.NoError(t, err)
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	given := cloudapi.Cursor{
		Fingerprint: "fp1",
		Created:     time.Date(2024, 1, 1, 10, 0, 0, 123456789, time.FixedZone("X", 3600)),
		ID:          "7b2a2d3c-0d8f-4e4b-9a53-9e0b8a3f6d01",
	}

	token, err := codec.Encode(given)
	require.NoError(t, err)
	require.NotContains(t, token, "=", "token is safe to put into URL as is")

	got, err := codec.Decode(token, "fp1")
	require.NoError(t, err)
	require.Equal(t, 1, got.Version)
	require.Equal(t, given.ID, got.ID)
	require.Equal(t, given.Fingerprint, got.Fingerprint)
	require.True(t, given.Created.Equal(got.Created))
}

func TestTokenCodec_Decode_Invalid(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	valid, err := codec.Encode(cloudapi.Cursor{Fingerprint: "fp1", Created: testCreated, ID: "vm1"})
	require.NoError(t, err)

	payload, _, _ := strings.Cut(valid, ".")
	otherCodec := newTestCodec(t, "other-secret")
	forged, err := otherCodec.Encode(cloudapi.Cursor{Fingerprint: "fp1", Created: testCreated, ID: "vm1"})
	require.NoError(t, err)

	tampered := base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"fp":"fp1","created":"2024-02-27T13:44:15Z","id":"vm9"}`))
	_, sig, _ := strings.Cut(valid, ".")

	testCases := map[string]struct {
		given       string
		fingerprint string
		expect      error
	}{
		"empty": {
			given:       "",
			fingerprint: "fp1",
			expect:      cloudapi.ErrTokenMalformed,
		},
		"garbage": {
			given:       "not a token",
			fingerprint: "fp1",
			expect:      cloudapi.ErrTokenMalformed,
		},
		"no-signature": {
			given:       payload,
			fingerprint: "fp1",
			expect:      cloudapi.ErrTokenMalformed,
		},
		"tampered-payload": {
			given:       tampered + "." + sig,
			fingerprint: "fp1",
			expect:      cloudapi.ErrTokenSignature,
		},
		"other-secret": {
			given:       forged,
			fingerprint: "fp1",
			expect:      cloudapi.ErrTokenSignature,
		},
		"other-filters": {
			given:       valid,
			fingerprint: "fp2",
			expect:      cloudapi.ErrTokenFilters,
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(test.given, test.fingerprint)
			require.ErrorIs(t, err, test.expect)
			require.Equal(t, cloudapi.InvalidToken, cloudapi.KindOf(err))
			require.ErrorIs(t, err, &cloudapi.Error{Kind: cloudapi.InvalidToken})
		})
	}
}

func TestTokenCodec_Decode_Version(t *testing.T) {
	codec := newTestCodec(t, "test-secret")
	current, err := codec.Encode(cloudapi.Cursor{Fingerprint: "fp1", Created: testCreated, ID: "vm1"})
	require.NoError(t, err)

	// Re-sign a payload of a version this codec does not know
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"v":2,"fp":"fp1","created":"2024-02-27T13:44:15Z","id":"vm1"}`))
	resigned := resign(t, "test-secret", payload)

	_, err = codec.Decode(resigned, "fp1")
	require.ErrorIs(t, err, cloudapi.ErrTokenVersion)

	_, err = codec.Decode(current, "fp1")
	require.NoError(t, err)
}
