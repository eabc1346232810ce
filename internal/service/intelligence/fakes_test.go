package intelligence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/leadintel/internal/domain"
)

const testOrg = "org-1"

var baseNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) // a Tuesday

// plainDecrypter treats blobs as plaintext; blobs starting with "!bad" fail.
type plainDecrypter struct{}

var errUnreadable = errors.New("unreadable field")

func (plainDecrypter) Decrypt(_ context.Context, _ string, blob []byte, _ string) ([]byte, error) {
	if len(blob) == 0 || strings.HasPrefix(string(blob), "!bad") {
		return nil, errUnreadable
	}
	return blob, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseNow} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memSource is an in-memory SignalSource.
type memSource struct {
	contacts map[string]*domain.Contact
	leads    map[string]*domain.Lead
	threads  []domain.EmailThread
	tasks    map[string][]domain.Task // keyed by contact or lead id
	events   []domain.CalendarEvent
	err      error
}

func newMemSource() *memSource {
	return &memSource{
		contacts: map[string]*domain.Contact{},
		leads:    map[string]*domain.Lead{},
		tasks:    map[string][]domain.Task{},
	}
}

func (m *memSource) addContact(id, email string) *domain.Contact {
	c := &domain.Contact{ID: id, OrganizationID: testOrg, FirstName: "Jane", LastName: "Doe", EncryptedEmail: []byte(email), UpdatedAt: baseNow.Add(-30 * 24 * time.Hour)}
	m.contacts[id] = c
	return c
}

func (m *memSource) GetContact(_ context.Context, orgID, id string) (*domain.Contact, error) {
	c, ok := m.contacts[id]
	if !ok || c.OrganizationID != orgID {
		return nil, ErrSubjectNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memSource) GetLead(_ context.Context, orgID, id string) (*domain.Lead, error) {
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return nil, ErrSubjectNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memSource) RecentThreads(_ context.Context, _ string, limit int) ([]domain.EmailThread, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := append([]domain.EmailThread(nil), m.threads...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSource) Tasks(_ context.Context, _, contactID, leadID string) ([]domain.Task, error) {
	out := append([]domain.Task(nil), m.tasks[contactID]...)
	if leadID != "" {
		out = append(out, m.tasks[leadID]...)
	}
	return out, nil
}

func (m *memSource) EventsSince(_ context.Context, _ string, since time.Time) ([]domain.CalendarEvent, error) {
	var out []domain.CalendarEvent
	for _, e := range m.events {
		if !e.Start.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// memRepo is an in-memory Repository. SaveAnalysis is atomic under mu.
type memRepo struct {
	mu            sync.Mutex
	profiles      map[string]*domain.IntelligenceProfile // keyed by org|subject key
	insights      map[string][]domain.Insight
	predictions   map[string][]domain.Prediction
	optimizations map[string]*domain.OptimizationProfile
	orphaned      map[string]time.Time // by profile id
	saves         int32
	beforeSave    func()
	saveErr       error
}

func newMemRepo() *memRepo {
	return &memRepo{
		profiles:      map[string]*domain.IntelligenceProfile{},
		insights:      map[string][]domain.Insight{},
		predictions:   map[string][]domain.Prediction{},
		optimizations: map[string]*domain.OptimizationProfile{},
		orphaned:      map[string]time.Time{},
	}
}

func repoKey(orgID string, ref domain.SubjectRef) string { return orgID + "|" + ref.Key() }

func (m *memRepo) GetProfile(_ context.Context, orgID string, ref domain.SubjectRef) (*domain.IntelligenceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[repoKey(orgID, ref)]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) RecentInsights(_ context.Context, profileID string, limit int) ([]domain.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.insights[profileID]
	var out []domain.Insight
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *memRepo) RecentPredictions(_ context.Context, profileID string, limit int) ([]domain.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.predictions[profileID]
	var out []domain.Prediction
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *memRepo) GetOptimization(_ context.Context, profileID string) (*domain.OptimizationProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.optimizations[profileID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) SaveAnalysis(_ context.Context, a *domain.Analysis) (*domain.IntelligenceProfile, error) {
	if m.beforeSave != nil {
		m.beforeSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	atomic.AddInt32(&m.saves, 1)

	key := repoKey(a.Profile.OrganizationID, a.Profile.Subject())
	p := a.Profile
	if existing, ok := m.profiles[key]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		p.Version = existing.Version + 1
	} else {
		p.Version = 1
	}
	m.profiles[key] = &p
	delete(m.orphaned, p.ID)

	for _, in := range a.Insights {
		in.ProfileID = p.ID
		m.insights[p.ID] = append(m.insights[p.ID], in)
	}
	for _, pr := range a.Predictions {
		pr.ProfileID = p.ID
		m.predictions[p.ID] = append(m.predictions[p.ID], pr)
	}
	opt := a.Optimization
	opt.ProfileID = p.ID
	m.optimizations[p.ID] = &opt

	cp := p
	return &cp, nil
}

func (m *memRepo) TopProfiles(_ context.Context, orgID string, limit int) ([]domain.IntelligenceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IntelligenceProfile
	for _, p := range m.profiles {
		if p.OrganizationID == orgID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) StaleProfiles(_ context.Context, olderThan time.Time, limit int) ([]domain.IntelligenceProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IntelligenceProfile
	for _, p := range m.profiles {
		if _, gone := m.orphaned[p.ID]; !gone && p.LastAnalyzedAt.Before(olderThan) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAnalyzedAt.Before(out[j].LastAnalyzedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) MarkOrphaned(_ context.Context, profileID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orphaned[profileID]; !ok {
		m.orphaned[profileID] = at
	}
	return nil
}

func (m *memRepo) profileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

func (m *memRepo) insightCount(profileID, typ string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, in := range m.insights[profileID] {
		if in.Type == typ {
			n++
		}
	}
	return n
}

// thread builds a thread with n messages spaced 30 minutes apart, the last
// one at updated.
func thread(id string, updated time.Time, n int, category string) domain.EmailThread {
	t := domain.EmailThread{
		ID:                    id,
		Subject:               "Re: " + id,
		EncryptedParticipants: []byte("jane@example.com, agent@crm.test"),
		AICategory:            category,
		UpdatedAt:             updated,
	}
	for i := 0; i < n; i++ {
		dir := domain.DirectionOutbound
		if i%2 == 1 {
			dir = domain.DirectionInbound
		}
		t.Messages = append(t.Messages, domain.Message{
			ID:        fmt.Sprintf("%s-m%d", id, i),
			Direction: dir,
			SentAt:    updated.Add(-time.Duration(n-1-i) * 30 * time.Minute),
		})
	}
	return t
}

func threads(prefix string, count, msgs int, updated time.Time) []domain.EmailThread {
	out := make([]domain.EmailThread, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, thread(fmt.Sprintf("%s%d", prefix, i), updated.Add(-time.Duration(i)*time.Hour), msgs, ""))
	}
	return out
}

func completedTasks(n int) []domain.Task {
	out := make([]domain.Task, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Task{ID: fmt.Sprintf("done-%d", i), Status: domain.TaskCompleted, UpdatedAt: baseNow.Add(-48 * time.Hour)})
	}
	return out
}

func overdueTasks(n int) []domain.Task {
	due := baseNow.Add(-24 * time.Hour)
	out := make([]domain.Task, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Task{ID: fmt.Sprintf("late-%d", i), Status: domain.TaskPending, DueAt: &due, UpdatedAt: baseNow.Add(-72 * time.Hour)})
	}
	return out
}

func pastEvents(n int) []domain.CalendarEvent {
	out := make([]domain.CalendarEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.CalendarEvent{
			ID:                 fmt.Sprintf("ev-%d", i),
			Title:              "Showing",
			Start:              baseNow.Add(-time.Duration(i+1) * 24 * time.Hour),
			EncryptedAttendees: []byte(`["jane@example.com"]`),
		})
	}
	return out
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int { return &v }
