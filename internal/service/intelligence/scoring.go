package intelligence

import (
	"math"
	"time"

	"github.com/ignite/leadintel/internal/domain"
)

// ScoreInput is everything the score calculator looks at.
type ScoreInput struct {
	Signals    domain.Signals
	Lead       *domain.Lead
	Engagement domain.EngagementAnalysis
	Now        time.Time
}

var (
	urgentCategories = map[string]bool{
		domain.CategoryHotLead:        true,
		domain.CategoryShowingRequest: true,
		domain.CategoryContract:       true,
	}
	valueCategories = map[string]bool{
		domain.CategorySellerLead:   true,
		domain.CategoryBuyerLead:    true,
		domain.CategoryPriceInquiry: true,
	}
)

// CalculateScores computes the four sub-scores and the conversion
// probability. Every factor is capped on its own so no single signal
// dominates, and the results are clamped to [0,100] and [0,1].
func CalculateScores(in ScoreInput) domain.Scores {
	s := domain.Scores{
		Engagement: engagementScore(in.Signals),
		Urgency:    urgencyScore(in.Signals, in.Now),
		Value:      valueScore(in.Signals.Threads, in.Lead),
	}
	s.ConversionProbability = conversionProbability(s, in.Engagement.ResponseRate, in.Lead)
	s.Overall = overallScore(s)
	return s
}

func engagementScore(sig domain.Signals) int {
	multi := 0
	for _, t := range sig.Threads {
		if len(t.Messages) > 1 {
			multi++
		}
	}
	email := min(min(2*len(sig.Threads), 40)+3*multi, 40)

	completed := 0
	for _, t := range sig.Tasks {
		if t.Status == domain.TaskCompleted {
			completed++
		}
	}
	tasks := min(6*completed, 30)
	events := min(4*len(sig.Events), 30)

	return clampScore(email + tasks + events)
}

func urgencyScore(sig domain.Signals, now time.Time) int {
	weekAgo := now.Add(-7 * 24 * time.Hour)
	recent, hot := 0, 0
	for _, t := range sig.Threads {
		if !t.UpdatedAt.Before(weekAgo) {
			recent++
		}
		if urgentCategories[t.AICategory] {
			hot++
		}
	}
	overdue := 0
	for _, t := range sig.Tasks {
		if t.IsOverdue(now) {
			overdue++
		}
	}
	return clampScore(min(10*recent, 30) + min(15*overdue, 40) + min(20*hot, 30))
}

func valueScore(threads []domain.EmailThread, lead *domain.Lead) int {
	score := 50
	if lead != nil {
		switch v := lead.PropertyValueOrZero(); {
		case v > 500000:
			score += 30
		case v > 250000:
			score += 20
		}
		switch p := lead.ProbabilityPercent(); {
		case p > 70:
			score += 20
		case p > 40:
			score += 10
		}
	}
	buying := 0
	for _, t := range threads {
		if valueCategories[t.AICategory] {
			buying++
		}
	}
	return clampScore(score + min(10*buying, 20))
}

// conversionProbability is rounded to four decimals. With integer scores
// the exact value never has more than four, so this only strips float
// noise such as 0.6325000000000001 before the value is stored.
func conversionProbability(s domain.Scores, responseRate float64, lead *domain.Lead) float64 {
	p := 0.3 +
		0.25*float64(s.Engagement)/100 +
		0.25*float64(s.Urgency)/100 +
		0.20*float64(s.Value)/100

	switch {
	case responseRate > 0.7:
		p += 0.10
	case responseRate > 0.3:
		p += 0.05
	}
	if lead != nil {
		switch {
		case lead.StageOrder > 3:
			p += 0.15
		case lead.StageOrder > 1:
			p += 0.10
		}
	}

	p = math.Round(p*1e4) / 1e4
	return math.Max(0, math.Min(1, p))
}

func overallScore(s domain.Scores) int {
	v := 0.30*float64(s.Engagement) +
		0.25*float64(s.Urgency) +
		0.25*float64(s.Value) +
		0.20*(s.ConversionProbability*100)
	return clampScore(roundHalfUp(v))
}

// roundHalfUp rounds .5 away from zero for non-negative v, absorbing float
// noise such as 18.499999999999996.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5 + 1e-9))
}

// BuildBehaviorMetrics summarises activity across all signals.
func BuildBehaviorMetrics(in ScoreInput, contact *domain.Contact) domain.BehaviorMetrics {
	bm := domain.BehaviorMetrics{
		EmailResponseRate:   in.Engagement.ResponseRate,
		AverageResponseTime: in.Engagement.AverageResponseTime,
		EngagementTrend:     in.Engagement.Trend,
	}

	if n := len(in.Signals.Tasks); n > 0 {
		completed := 0
		for _, t := range in.Signals.Tasks {
			if t.Status == domain.TaskCompleted {
				completed++
			}
		}
		bm.TaskCompletionRate = float64(completed) / float64(n)
	}

	var last time.Time
	bump := func(t time.Time) {
		if t.After(last) {
			last = t
		}
	}
	for _, t := range in.Signals.Threads {
		bump(t.UpdatedAt)
		for _, m := range t.Messages {
			bump(m.SentAt)
		}
	}
	for _, t := range in.Signals.Tasks {
		bump(t.UpdatedAt)
	}
	for _, e := range in.Signals.Events {
		if e.Start.After(in.Now) {
			continue
		}
		bm.MeetingCount++
		bump(e.Start)
	}
	if contact != nil {
		bump(contact.UpdatedAt)
	}
	if in.Lead != nil {
		bump(in.Lead.UpdatedAt)
	}
	bm.LastActivity = last
	return bm
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
