package fieldcrypt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/leadintel/internal/pkg/httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyring(t *testing.T) *Keyring {
	t.Helper()
	kr, err := NewKeyring(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return kr
}

func TestKeyring_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kr := testKeyring(t)

	blob, err := kr.Encrypt(ctx, "org-1", []byte("jane@example.com"), PurposeContactEmail)
	require.NoError(t, err)

	plain, err := kr.Decrypt(ctx, "org-1", blob, PurposeContactEmail)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", string(plain))
}

func TestKeyring_BoundToOrgAndPurpose(t *testing.T) {
	ctx := context.Background()
	kr := testKeyring(t)

	blob, err := kr.Encrypt(ctx, "org-1", []byte("a@b.co"), PurposeEmailParticipants)
	require.NoError(t, err)

	_, err = kr.Decrypt(ctx, "org-2", blob, PurposeEmailParticipants)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = kr.Decrypt(ctx, "org-1", blob, PurposeCalendarAttendees)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestKeyring_RejectsBadEnvelopes(t *testing.T) {
	ctx := context.Background()
	kr := testKeyring(t)

	_, err := kr.Decrypt(ctx, "org-1", nil, PurposeEmailBody)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = kr.Decrypt(ctx, "org-1", []byte{0x02, 1, 2, 3}, PurposeEmailBody)
	assert.ErrorIs(t, err, ErrMalformed)

	blob, err := kr.Encrypt(ctx, "org-1", []byte("hello"), PurposeEmailBody)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	_, err = kr.Decrypt(ctx, "org-1", blob, PurposeEmailBody)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewKeyring_KeyLength(t *testing.T) {
	_, err := NewKeyring([]byte("short"))
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 32)

	k, err := ParseKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, k)

	k, err = ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, k)

	_, err = ParseKey("nope")
	assert.Error(t, err)
}

func TestRemote_Decrypt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/decrypt", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))

		var req decryptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "org-1", req.OrgID)
		assert.Equal(t, PurposeCalendarAttendees, req.Purpose)

		blob, _ := base64.StdEncoding.DecodeString(req.Ciphertext)
		json.NewEncoder(w).Encode(decryptResponse{
			Plaintext: base64.StdEncoding.EncodeToString(bytes.ToUpper(blob)),
		})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL+"/", "svc-token", nil)
	plain, err := r.Decrypt(context.Background(), "org-1", []byte("a@b.co"), PurposeCalendarAttendees)
	require.NoError(t, err)
	assert.Equal(t, "A@B.CO", string(plain))
}

func TestRemote_RejectedBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "", nil)
	_, err := r.Decrypt(context.Background(), "org-1", []byte("x"), PurposeEmailBody)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestRemote_ServerErrorAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := httpretry.NewRetryClient(nil, 1, httpretry.WithDelays(time.Millisecond, time.Millisecond, time.Millisecond))
	r := NewRemote(srv.URL, "", client)
	_, err := r.Decrypt(context.Background(), "org-1", []byte("x"), PurposeEmailBody)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDecrypt)
	assert.Contains(t, err.Error(), "status 500")
}
