package intelligence

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ignite/leadintel/internal/pkg/fieldcrypt"
)

// FieldResult is the outcome of decrypting one encrypted field. A field is
// known when Err is nil.
type FieldResult struct {
	Plain string
	Err   error
}

// Known reports whether the field decrypted successfully.
func (r FieldResult) Known() bool { return r.Err == nil }

func decryptField(ctx context.Context, dec fieldcrypt.Decrypter, orgID string, blob []byte, purpose string) FieldResult {
	plain, err := dec.Decrypt(ctx, orgID, blob, purpose)
	if err != nil {
		return FieldResult{Err: err}
	}
	return FieldResult{Plain: string(plain)}
}

// decrypted pairs a record with the result of decrypting one of its fields.
type decrypted[T any] struct {
	Record T
	Field  FieldResult
}

// partition splits records into those whose field is known and those whose
// field could not be decrypted. Input order is preserved in both halves.
func partition[T any](items []decrypted[T]) (known, unknown []decrypted[T]) {
	for _, it := range items {
		if it.Field.Known() {
			known = append(known, it)
		} else {
			unknown = append(unknown, it)
		}
	}
	return known, unknown
}

// participantsContain is a case-insensitive substring match.
func participantsContain(participants, email string) bool {
	return strings.Contains(strings.ToLower(participants), strings.ToLower(email))
}

// parseAttendees accepts a JSON array of strings, a JSON array of
// {"email": ...} objects, or a comma/semicolon separated list. Entries in
// "Name <addr>" form are reduced to the address.
func parseAttendees(plain string) []string {
	plain = strings.TrimSpace(plain)
	var raw []string
	if strings.HasPrefix(plain, "[") {
		if err := json.Unmarshal([]byte(plain), &raw); err != nil {
			var objs []struct {
				Email string `json:"email"`
			}
			if err := json.Unmarshal([]byte(plain), &objs); err == nil {
				for _, o := range objs {
					raw = append(raw, o.Email)
				}
			}
		}
	} else {
		raw = strings.FieldsFunc(plain, func(r rune) bool { return r == ',' || r == ';' })
	}

	out := make([]string, 0, len(raw))
	for _, a := range raw {
		a = strings.TrimSpace(a)
		if i := strings.LastIndex(a, "<"); i >= 0 && strings.HasSuffix(a, ">") {
			a = strings.TrimSpace(a[i+1 : len(a)-1])
		}
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// attendeesInclude is a case-insensitive exact match after trimming.
func attendeesInclude(attendees []string, email string) bool {
	email = strings.TrimSpace(email)
	for _, a := range attendees {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}
