package intelligence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ignite/leadintel/internal/domain"
	"github.com/ignite/leadintel/internal/pkg/distlock"
	"github.com/ignite/leadintel/internal/pkg/logger"
)

// View sizes.
const (
	InsightLimit    = 10
	PredictionLimit = 5
	PreviewLimit    = 3
	MaxTopLimit     = 100
)

// AnalyzeRequest asks for a subject's intelligence, recomputing it when the
// stored profile is stale or ForceRefresh is set.
type AnalyzeRequest struct {
	Subject      domain.SubjectRef `json:"subject"`
	ForceRefresh bool              `json:"force_refresh"`
}

// Service implements the lead intelligence workflow. It is safe for
// concurrent use if the repository, signal source and locker are.
type Service struct {
	repo       Repository
	src        SignalSource
	collector  *Collector
	analyzer   *Analyzer
	locker     Locker
	archiver   Archiver
	window     time.Duration
	topDefault int
	now        func() time.Time
	group      singleflight.Group

	recomputeTimeout time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker sets the cross-process per-subject lock. Without one, an
// in-process lock table is used.
func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

// WithArchiver enables snapshot archiving of recomputed views.
func WithArchiver(a Archiver) Option { return func(s *Service) { s.archiver = a } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithTopDefault sets the default size of Top.
func WithTopDefault(n int) Option { return func(s *Service) { s.topDefault = n } }

// WithRecomputeTimeout bounds one shared recomputation, lock wait included.
func WithRecomputeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recomputeTimeout = d
		}
	}
}

// NewService creates the intelligence service. window is the freshness window.
func NewService(repo Repository, src SignalSource, collector *Collector, analyzer *Analyzer, window time.Duration, opts ...Option) *Service {
	if window <= 0 {
		window = 24 * time.Hour
	}
	s := &Service{
		repo:       repo,
		src:        src,
		collector:  collector,
		analyzer:   analyzer,
		window:     window,
		topDefault: 10,
		now:        time.Now,

		recomputeTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = distlock.NewLocker(nil, nil, 2*time.Minute, 30*time.Second)
	}
	return s
}

// Analyze returns the subject's profile view, recomputing it when needed.
func (s *Service) Analyze(ctx context.Context, orgID string, req AnalyzeRequest) (*domain.ProfileView, error) {
	const op = "intelligence.Analyze"

	if err := validateSubject(req.Subject); err != nil {
		return nil, opError(op, KindBadRequest, err)
	}
	subj, err := s.resolve(ctx, orgID, req.Subject)
	if err != nil {
		return nil, opError(op, KindOf(err), err)
	}

	current, err := s.loadProfile(ctx, orgID, subj.Ref)
	if err != nil {
		return nil, opError(op, KindInternal, err)
	}
	if !req.ForceRefresh && current != nil && IsFresh(current.LastAnalyzedAt, s.now(), s.window) {
		view, err := s.cachedView(ctx, current)
		if err != nil {
			return nil, opError(op, KindInternal, err)
		}
		return view, nil
	}

	// The version seen before waiting tells us, once the lock is ours,
	// whether another caller wrote in the meantime.
	var observed int64
	if current != nil {
		observed = current.Version
	}

	key := subj.Ref.LockKey(orgID)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// Every caller collapsed onto key waits on this run, so it must not
		// die with whichever caller happened to start it.
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recomputeTimeout)
		defer cancel()
		return s.recompute(shared, subj, key, observed, req.ForceRefresh)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, opError(op, KindInternal, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		var e *Error
		if errors.As(res.Err, &e) {
			return nil, res.Err
		}
		return nil, opError(op, KindInternal, res.Err)
	}
	return res.Val.(*domain.ProfileView), nil
}

// recompute runs inside the per-subject critical section.
func (s *Service) recompute(ctx context.Context, subj Subject, key string, observed int64, force bool) (*domain.ProfileView, error) {
	const op = "intelligence.Analyze"
	log := logger.With("org_id", subj.OrgID, "subject", subj.Ref.Key())

	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, distlock.ErrLockTimeout) {
			return nil, opError(op, KindConflict, ErrAnalysisInProgress)
		}
		return nil, opError(op, KindInternal, fmt.Errorf("acquire subject lock: %w", err))
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			log.Warn("release subject lock", "error", err.Error())
		}
	}()

	current, err := s.loadProfile(ctx, subj.OrgID, subj.Ref)
	if err != nil {
		return nil, opError(op, KindInternal, err)
	}
	if current != nil && (current.Version > observed || (!force && IsFresh(current.LastAnalyzedAt, s.now(), s.window))) {
		log.Debug("reusing concurrent recomputation", "version", current.Version)
		view, err := s.cachedView(ctx, current)
		if err != nil {
			return nil, opError(op, KindInternal, err)
		}
		return view, nil
	}

	now := s.now()
	sig, err := s.collector.Collect(ctx, subj.OrgID, subj.Contact, subj.Lead, now)
	if err != nil {
		log.Error("collect signals", "error", err.Error())
		return nil, opError(op, KindInternal, fmt.Errorf("%w: %v", ErrAnalysisFailed, err))
	}
	analysis, err := s.analyzer.Analyze(subj, sig, now)
	if err != nil {
		log.Error("analyze subject", "error", err.Error())
		return nil, opError(op, KindInternal, fmt.Errorf("%w: %v", ErrAnalysisFailed, err))
	}

	stored, err := s.repo.SaveAnalysis(ctx, analysis)
	if err != nil {
		log.Error("save analysis", "error", err.Error())
		return nil, opError(op, KindInternal, fmt.Errorf("save analysis: %w", err))
	}

	view, err := s.view(ctx, stored, InsightLimit, PredictionLimit, true)
	if err != nil {
		return nil, opError(op, KindInternal, err)
	}
	log.Info("intelligence recomputed",
		"overall", stored.Overall,
		"engagement", stored.Engagement,
		"urgency", stored.Urgency,
		"value", stored.Value,
		"threads", len(sig.Threads),
		"tasks", len(sig.Tasks),
		"events", len(sig.Events),
		"version", stored.Version)

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, subj.OrgID, view); err != nil {
			log.Warn("archive snapshot", "error", err.Error())
		}
	}
	return view, nil
}

// loadProfile returns nil, nil when the subject has no profile yet.
func (s *Service) loadProfile(ctx context.Context, orgID string, ref domain.SubjectRef) (*domain.IntelligenceProfile, error) {
	p, err := s.repo.GetProfile(ctx, orgID, ref)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (s *Service) cachedView(ctx context.Context, p *domain.IntelligenceProfile) (*domain.ProfileView, error) {
	view, err := s.view(ctx, p, InsightLimit, PredictionLimit, true)
	if err != nil {
		return nil, err
	}
	view.Cached = true
	return view, nil
}

// Get returns the stored view of a subject without recomputing.
func (s *Service) Get(ctx context.Context, orgID string, ref domain.SubjectRef) (*domain.ProfileView, error) {
	const op = "intelligence.Get"

	if err := validateSubject(ref); err != nil {
		return nil, opError(op, KindBadRequest, err)
	}
	p, err := s.repo.GetProfile(ctx, orgID, ref)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, opError(op, KindNotFound, ErrProfileNotFound)
	}
	if err != nil {
		return nil, opError(op, KindInternal, fmt.Errorf("load profile: %w", err))
	}
	view, err := s.cachedView(ctx, p)
	if err != nil {
		return nil, opError(op, KindInternal, err)
	}
	return view, nil
}

// Top returns the organization's highest scoring profiles with short
// insight and prediction previews. limit <= 0 uses the default.
func (s *Service) Top(ctx context.Context, orgID string, limit int) ([]domain.ProfileView, error) {
	const op = "intelligence.Top"

	if limit <= 0 {
		limit = s.topDefault
	}
	if limit > MaxTopLimit {
		limit = MaxTopLimit
	}
	profiles, err := s.repo.TopProfiles(ctx, orgID, limit)
	if err != nil {
		return nil, opError(op, KindInternal, fmt.Errorf("list top profiles: %w", err))
	}

	out := make([]domain.ProfileView, 0, len(profiles))
	for i := range profiles {
		view, err := s.view(ctx, &profiles[i], PreviewLimit, PreviewLimit, false)
		if err != nil {
			return nil, opError(op, KindInternal, err)
		}
		view.Cached = true
		out = append(out, *view)
	}
	return out, nil
}

// StaleSubjects lists subjects whose profiles have aged out of the
// freshness window, oldest first.
func (s *Service) StaleSubjects(ctx context.Context, limit int) ([]domain.IntelligenceProfile, error) {
	profiles, err := s.repo.StaleProfiles(ctx, s.now().Add(-s.window), limit)
	if err != nil {
		return nil, opError("intelligence.StaleSubjects", KindInternal, fmt.Errorf("list stale profiles: %w", err))
	}
	return profiles, nil
}

// MarkOrphaned takes a profile out of the stale rotation once its subject
// has been deleted from the CRM.
func (s *Service) MarkOrphaned(ctx context.Context, profileID string) error {
	if err := s.repo.MarkOrphaned(ctx, profileID, s.now()); err != nil {
		return opError("intelligence.MarkOrphaned", KindInternal, fmt.Errorf("mark orphaned: %w", err))
	}
	return nil
}

func (s *Service) view(ctx context.Context, p *domain.IntelligenceProfile, insights, predictions int, withOptimization bool) (*domain.ProfileView, error) {
	ins, err := s.repo.RecentInsights(ctx, p.ID, insights)
	if err != nil {
		return nil, fmt.Errorf("load insights: %w", err)
	}
	preds, err := s.repo.RecentPredictions(ctx, p.ID, predictions)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	view := &domain.ProfileView{
		Profile:     *p,
		Insights:    nonNil(ins),
		Predictions: nonNil(preds),
	}
	if withOptimization {
		opt, err := s.repo.GetOptimization(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("load optimization: %w", err)
		}
		view.Optimization = opt
	}
	return view, nil
}

func (s *Service) resolve(ctx context.Context, orgID string, ref domain.SubjectRef) (Subject, error) {
	subj := Subject{OrgID: orgID}

	contactID := ref.ContactID
	if ref.LeadID != "" {
		lead, err := s.src.GetLead(ctx, orgID, ref.LeadID)
		if err != nil {
			return subj, fmt.Errorf("load lead: %w", err)
		}
		subj.Lead = lead
		contactID = lead.ContactID
		if contactID == "" {
			return subj, ErrSubjectNotFound
		}
	}

	contact, err := s.src.GetContact(ctx, orgID, contactID)
	if err != nil {
		return subj, fmt.Errorf("load contact: %w", err)
	}
	subj.Contact = contact
	subj.Ref = domain.SubjectRef{LeadID: ref.LeadID, ContactID: contact.ID}
	return subj, nil
}

func validateSubject(ref domain.SubjectRef) error {
	switch {
	case ref.IsZero():
		return ErrMissingSubject
	case ref.LeadID != "" && ref.ContactID != "":
		return ErrAmbiguousSubject
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
