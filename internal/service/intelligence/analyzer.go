package intelligence

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/leadintel/internal/domain"
)

// Analyzer turns collected signals into a complete Analysis. It performs no
// I/O; given the same inputs, time and ID source it returns the same result.
type Analyzer struct {
	renderer      *Renderer
	extractor     *Extractor
	loc           *time.Location
	predictionTTL time.Duration
	newID         func() string
}

// NewAnalyzer wires the analysis steps. loc is used for contact-time
// bucketing; predictionTTL sets Prediction.ExpiresAt.
func NewAnalyzer(renderer *Renderer, extractor *Extractor, loc *time.Location, predictionTTL time.Duration) *Analyzer {
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	if extractor == nil {
		extractor = NewExtractor(nil, nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	if predictionTTL <= 0 {
		predictionTTL = 7 * 24 * time.Hour
	}
	return &Analyzer{
		renderer:      renderer,
		extractor:     extractor,
		loc:           loc,
		predictionTTL: predictionTTL,
		newID:         newUUID,
	}
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Subject bundles the resolved CRM records of a subject.
type Subject struct {
	OrgID   string
	Ref     domain.SubjectRef
	Contact *domain.Contact
	Lead    *domain.Lead
}

// Analyze runs engagement analysis, scoring, extraction, prediction, insight
// generation and optimization for one subject.
func (a *Analyzer) Analyze(subj Subject, sig domain.Signals, now time.Time) (*domain.Analysis, error) {
	ea, patterns := AnalyzeEngagement(sig.Threads)
	in := ScoreInput{Signals: sig, Lead: subj.Lead, Engagement: ea, Now: now}
	scores := CalculateScores(in)
	pains, competitors, price := a.extractor.Extract(sig.Bodies)

	p := domain.IntelligenceProfile{
		ID:                 a.newID(),
		OrganizationID:     subj.OrgID,
		LeadID:             subj.Ref.LeadID,
		ContactID:          subj.Contact.ID,
		Scores:             scores,
		ResponsePatterns:   patterns,
		BehaviorMetrics:    BuildBehaviorMetrics(in, subj.Contact),
		PredictedActions:   PredictActions(ea.Trend, sig.Tasks, subj.Lead, now),
		OptimalContactTime: OptimalContactTime(sig.Threads, a.loc),
		CommunicationStyle: DetermineStyle(sig.Threads),
		DecisionTimeframe:  DecisionTimeframe(ea, subj.Lead, now),
		PainPoints:         pains,
		CompetitorMentions: competitors,
		PriceSignals:       price,
		LastAnalyzedAt:     now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	n := &narrator{r: a.renderer, bindings: map[string]interface{}{
		"name":          subj.Contact.DisplayName(),
		"engagement":    scores.Engagement,
		"urgency":       scores.Urgency,
		"value":         scores.Value,
		"overall":       scores.Overall,
		"probability":   scores.ConversionProbability,
		"response_rate": ea.ResponseRate,
		"timeframe":     string(p.DecisionTimeframe),
	}}
	p.RecommendedActions = recommend(n, scores, ea.ResponseRate)

	analysis := &domain.Analysis{
		Profile:      p,
		Insights:     generateInsights(n, scores, now, a.newID),
		Predictions:  buildPredictions(n, &p, ea, a.predictionTTL, now, a.newID),
		Optimization: buildOptimization(&p, sig.Threads, now),
	}
	if n.err != nil {
		return nil, fmt.Errorf("render narrative: %w", n.err)
	}
	for i := range analysis.Insights {
		analysis.Insights[i].ProfileID = p.ID
	}
	for i := range analysis.Predictions {
		analysis.Predictions[i].ProfileID = p.ID
	}
	return analysis, nil
}
