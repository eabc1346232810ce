package fieldcrypt

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const envelopeV1 byte = 0x01

// Keyring decrypts locally with AES-256-GCM. Each (org, purpose) pair gets
// its own key, derived from the master key with HKDF-SHA256; the purpose is
// also authenticated as additional data.
//
// Envelope: 0x01 | 12-byte nonce | ciphertext+tag.
type Keyring struct {
	master []byte
	keys   sync.Map // "org|purpose" -> cipher.AEAD
}

// NewKeyring creates a keyring from a 32-byte master key.
func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) != 32 {
		return nil, fmt.Errorf("fieldcrypt: master key must be 32 bytes, got %d", len(master))
	}
	k := make([]byte, 32)
	copy(k, master)
	return &Keyring{master: k}, nil
}

// ParseKey decodes a master key given as hex or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, fmt.Errorf("fieldcrypt: key must be 32 bytes encoded as hex or base64")
}

func (k *Keyring) aead(orgID, purpose string) (cipher.AEAD, error) {
	id := orgID + "|" + purpose
	if v, ok := k.keys.Load(id); ok {
		return v.(cipher.AEAD), nil
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, k.master, nil, []byte("leadintel/fieldcrypt/"+id))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("fieldcrypt: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: create GCM: %w", err)
	}
	v, _ := k.keys.LoadOrStore(id, gcm)
	return v.(cipher.AEAD), nil
}

// Encrypt seals plaintext for (orgID, purpose). The engine itself only
// decrypts; this exists for fixtures and backfills.
func (k *Keyring) Encrypt(_ context.Context, orgID string, plaintext []byte, purpose string) ([]byte, error) {
	gcm, err := k.aead(orgID, purpose)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+gcm.NonceSize(), 1+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out[0] = envelopeV1
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, fmt.Errorf("fieldcrypt: generate nonce: %w", err)
	}
	return gcm.Seal(out, out[1:], plaintext, []byte(purpose)), nil
}

// Decrypt opens a blob sealed for (orgID, purpose).
func (k *Keyring) Decrypt(_ context.Context, orgID string, blob []byte, purpose string) ([]byte, error) {
	if len(blob) == 0 {
		return nil, ErrEmpty
	}
	gcm, err := k.aead(orgID, purpose)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if blob[0] != envelopeV1 || len(blob) < 1+ns+gcm.Overhead() {
		return nil, ErrMalformed
	}
	plain, err := gcm.Open(nil, blob[1:1+ns], blob[1+ns:], []byte(purpose))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
