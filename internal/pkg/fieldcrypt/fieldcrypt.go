// Package fieldcrypt decrypts field-level encrypted CRM values (contact
// email, thread participants, calendar attendees, message bodies).
//
// Every value is bound to an organization and a purpose string; a blob
// encrypted for one purpose will not open under another.
package fieldcrypt

import (
	"context"
	"errors"
)

// Purposes understood by the CRM's field encryption.
const (
	PurposeContactEmail      = "contact:email"
	PurposeEmailParticipants = "email:participants"
	PurposeCalendarAttendees = "calendar:attendees"
	PurposeEmailBody         = "email:body"
)

var (
	// ErrMalformed means the blob is not in the expected envelope format.
	ErrMalformed = errors.New("fieldcrypt: malformed ciphertext")
	// ErrDecrypt means authentication failed (wrong key, org or purpose).
	ErrDecrypt = errors.New("fieldcrypt: decryption failed")
	// ErrEmpty is returned for nil or zero-length blobs.
	ErrEmpty = errors.New("fieldcrypt: empty ciphertext")
)

// Decrypter turns an encrypted field back into plaintext.
type Decrypter interface {
	Decrypt(ctx context.Context, orgID string, blob []byte, purpose string) ([]byte, error)
}
