package domain

import (
	"fmt"
	"time"
)

// SubjectRef identifies the contact or lead being scored. Exactly one of the
// two IDs is expected on input; ContactID is filled in from the lead when the
// caller only supplies LeadID.
type SubjectRef struct {
	LeadID    string `json:"lead_id,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
}

// IsZero reports whether neither identifier is set.
func (r SubjectRef) IsZero() bool { return r.LeadID == "" && r.ContactID == "" }

// Key returns the profile identity of the subject. A lead takes precedence
// over its contact so that a deal in progress has its own profile.
func (r SubjectRef) Key() string {
	if r.LeadID != "" {
		return "lead:" + r.LeadID
	}
	return "contact:" + r.ContactID
}

// LockKey returns the per-subject critical section name for an organization.
func (r SubjectRef) LockKey(orgID string) string {
	return fmt.Sprintf("leadintel:%s:%s", orgID, r.Key())
}

// Contact is the person behind a subject. The email address is stored
// encrypted and only ever decrypted for matching.
type Contact struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	EncryptedEmail []byte    `json:"-" db:"email_encrypted"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the contact's full name, or "This contact" when unnamed.
func (c *Contact) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	}
	return "This contact"
}

// Lead is a deal in progress attached to a contact.
type Lead struct {
	ID                string     `json:"id" db:"id"`
	OrganizationID    string     `json:"organization_id" db:"organization_id"`
	ContactID         string     `json:"contact_id" db:"contact_id"`
	PropertyValue     *float64   `json:"property_value,omitempty" db:"property_value"`
	Probability       *int       `json:"probability,omitempty" db:"probability"` // percent, 0-100
	StageName         string     `json:"stage_name,omitempty" db:"stage_name"`
	StageOrder        int        `json:"stage_order" db:"stage_order"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty" db:"expected_close_date"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// ProbabilityPercent returns the deal probability, or 0 when unset.
func (l *Lead) ProbabilityPercent() int {
	if l == nil || l.Probability == nil {
		return 0
	}
	return *l.Probability
}

// PropertyValueOrZero returns the property value, or 0 when unset.
func (l *Lead) PropertyValueOrZero() float64 {
	if l == nil || l.PropertyValue == nil {
		return 0
	}
	return *l.PropertyValue
}
