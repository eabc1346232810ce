package fieldcrypt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/leadintel/internal/pkg/httpretry"
)

// Remote delegates decryption to the CRM's key service over HTTP.
type Remote struct {
	baseURL string
	token   string
	client  httpretry.HTTPDoer
}

// NewRemote creates a remote decrypter. A nil client gets a RetryClient
// with default settings.
func NewRemote(baseURL, token string, client httpretry.HTTPDoer) *Remote {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 3)
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type decryptRequest struct {
	OrgID      string `json:"org_id"`
	Purpose    string `json:"purpose"`
	Ciphertext string `json:"ciphertext"`
}

type decryptResponse struct {
	Plaintext string `json:"plaintext"`
}

// Decrypt posts the blob to /v1/decrypt. 4xx answers other than 429 mean
// the blob itself was rejected and map to ErrDecrypt.
func (r *Remote) Decrypt(ctx context.Context, orgID string, blob []byte, purpose string) ([]byte, error) {
	if len(blob) == 0 {
		return nil, ErrEmpty
	}
	body, err := json.Marshal(decryptRequest{
		OrgID:      orgID,
		Purpose:    purpose,
		Ciphertext: base64.StdEncoding.EncodeToString(blob),
	})
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/decrypt", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: decrypt service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrDecrypt
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fieldcrypt: decrypt service returned status %d", resp.StatusCode)
	}

	var out decryptResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("fieldcrypt: decode response: %w", err)
	}
	plain, err := base64.StdEncoding.DecodeString(out.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: decode plaintext: %w", err)
	}
	return plain, nil
}
