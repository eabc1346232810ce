package intelligence

import (
	"context"
	"time"

	"github.com/ignite/leadintel/internal/domain"
)

// Repository defines the data access contract for intelligence artifacts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetProfile returns the live profile of a subject. Returns
	// ErrProfileNotFound if none has been computed yet.
	GetProfile(ctx context.Context, orgID string, subject domain.SubjectRef) (*domain.IntelligenceProfile, error)

	// RecentInsights returns up to limit insights of a profile, newest first.
	RecentInsights(ctx context.Context, profileID string, limit int) ([]domain.Insight, error)

	// RecentPredictions returns up to limit predictions of a profile, newest first.
	RecentPredictions(ctx context.Context, profileID string, limit int) ([]domain.Prediction, error)

	// GetOptimization returns the optimization profile, or nil if none exists.
	GetOptimization(ctx context.Context, profileID string) (*domain.OptimizationProfile, error)

	// SaveAnalysis upserts the profile keyed on (org, subject), incrementing
	// its version, appends the insights and predictions and upserts the
	// optimization profile, all in one transaction. It returns the stored
	// profile; the artifacts' ProfileID fields are set to the stored ID.
	SaveAnalysis(ctx context.Context, a *domain.Analysis) (*domain.IntelligenceProfile, error)

	// TopProfiles returns the organization's profiles ordered by overall
	// score descending.
	TopProfiles(ctx context.Context, orgID string, limit int) ([]domain.IntelligenceProfile, error)

	// StaleProfiles returns profiles across organizations whose
	// LastAnalyzedAt is before olderThan, oldest first. Orphaned profiles
	// are left out.
	StaleProfiles(ctx context.Context, olderThan time.Time, limit int) ([]domain.IntelligenceProfile, error)

	// MarkOrphaned flags a profile whose lead or contact no longer exists.
	// The next SaveAnalysis of the subject clears the flag.
	MarkOrphaned(ctx context.Context, profileID string, at time.Time) error
}

// SignalSource is the read-only view of CRM records the engine scores.
type SignalSource interface {
	// GetContact returns ErrSubjectNotFound if the contact does not exist
	// in the organization.
	GetContact(ctx context.Context, orgID, contactID string) (*domain.Contact, error)

	// GetLead returns ErrSubjectNotFound if the lead does not exist in the
	// organization.
	GetLead(ctx context.Context, orgID, leadID string) (*domain.Lead, error)

	// RecentThreads returns the organization's most recently updated
	// threads with their messages, newest first.
	RecentThreads(ctx context.Context, orgID string, limit int) ([]domain.EmailThread, error)

	// Tasks returns tasks linked to the contact or, when leadID is set, the lead.
	Tasks(ctx context.Context, orgID, contactID, leadID string) ([]domain.Task, error)

	// EventsSince returns calendar events starting at or after since.
	EventsSince(ctx context.Context, orgID string, since time.Time) ([]domain.CalendarEvent, error)
}

// Locker provides the cross-process per-subject critical section.
type Locker interface {
	Lock(ctx context.Context, key string) (func(context.Context) error, error)
}

// Archiver receives every freshly written view after commit.
type Archiver interface {
	Archive(ctx context.Context, orgID string, view *domain.ProfileView) error
}
