package intelligence

import (
	"time"

	"github.com/ignite/leadintel/internal/domain"
)

// Predicted next actions, in rule order.
const (
	ActionScheduleFollowUp = "Schedule follow-up call"
	ActionSendInfo         = "Send additional property information"
	ActionCompleteOverdue  = "Complete overdue tasks"
	ActionPrepareContract  = "Prepare contract documents"
	ActionScheduleShowing  = "Schedule property showing"
)

const (
	maxPredictedActions = 5
	immediateResponseMs = float64(2 * time.Hour / time.Millisecond)
)

// PredictActions evaluates the action rules in fixed order and keeps the
// first five.
func PredictActions(trend domain.EngagementTrend, tasks []domain.Task, lead *domain.Lead, now time.Time) []string {
	actions := []string{}
	if trend == domain.TrendIncreasing {
		actions = append(actions, ActionScheduleFollowUp, ActionSendInfo)
	}
	for _, t := range tasks {
		if t.Status == domain.TaskPending && t.IsOverdue(now) {
			actions = append(actions, ActionCompleteOverdue)
			break
		}
	}
	if lead.ProbabilityPercent() > 60 {
		actions = append(actions, ActionPrepareContract, ActionScheduleShowing)
	}
	if len(actions) > maxPredictedActions {
		actions = actions[:maxPredictedActions]
	}
	return actions
}

// recommend returns every recommendation whose score condition holds.
func recommend(n *narrator, s domain.Scores, responseRate float64) []string {
	recs := []string{}
	if s.Engagement > 70 && s.Urgency > 60 {
		recs = append(recs, n.text(tplRecommendPrioritize))
	}
	if responseRate < 0.3 {
		recs = append(recs, n.text(tplRecommendSwitchChannel))
	}
	if s.Value > 80 && s.Engagement < 50 {
		recs = append(recs, n.text(tplRecommendPersonalize))
	}
	if s.Urgency > 80 {
		recs = append(recs, n.text(tplRecommendRespondQuickly))
	}
	return recs
}

// DetermineStyle picks the communication style from thread shapes.
func DetermineStyle(threads []domain.EmailThread) domain.CommunicationStyle {
	total := 0
	single := false
	for _, t := range threads {
		total += len(t.Messages)
		if len(t.Messages) == 1 {
			single = true
		}
	}
	switch {
	case total > 20:
		return domain.StyleRelationship
	case single:
		return domain.StyleDirect
	default:
		return domain.StyleProfessional
	}
}

// OptimalContactTime buckets message send hours in loc: morning [6,12),
// afternoon [12,17), evening [17,22). Other hours are ignored. Ties go to
// the earlier bucket, so no messages means morning.
func OptimalContactTime(threads []domain.EmailThread, loc *time.Location) domain.ContactTime {
	if loc == nil {
		loc = time.UTC
	}
	var morning, afternoon, evening int
	for _, t := range threads {
		for _, m := range t.Messages {
			switch h := m.SentAt.In(loc).Hour(); {
			case h >= 6 && h < 12:
				morning++
			case h >= 12 && h < 17:
				afternoon++
			case h >= 17 && h < 22:
				evening++
			}
		}
	}
	switch {
	case morning >= afternoon && morning >= evening:
		return domain.ContactMorning
	case afternoon >= evening:
		return domain.ContactAfternoon
	default:
		return domain.ContactEvening
	}
}

// DecisionTimeframe estimates when the subject will decide. Fast replies
// win over the lead's expected close date.
func DecisionTimeframe(ea domain.EngagementAnalysis, lead *domain.Lead, now time.Time) domain.DecisionTimeframe {
	if ea.AverageResponseTime > 0 && ea.AverageResponseTime < immediateResponseMs {
		return domain.TimeframeImmediate
	}
	if lead != nil && lead.ExpectedCloseDate != nil {
		days := lead.ExpectedCloseDate.Sub(now).Hours() / 24
		switch {
		case days <= 30:
			return domain.TimeframeShortTerm
		case days <= 90:
			return domain.TimeframeMedium
		}
	}
	return domain.TimeframeLongTerm
}

// buildPredictions always emits a conversion prediction and, when any
// action is predicted, a next_action prediction for the first one.
func buildPredictions(n *narrator, p *domain.IntelligenceProfile, ea domain.EngagementAnalysis, ttl time.Duration, now time.Time, newID func() string) []domain.Prediction {
	expires := now.Add(ttl)
	preds := []domain.Prediction{{
		ID:             newID(),
		PredictionType: "conversion",
		Prediction:     n.text(tplPredictionConversion),
		Probability:    p.ConversionProbability,
		Timeframe:      p.DecisionTimeframe,
		Factors: map[string]float64{
			"engagement":    float64(p.Engagement) / 100,
			"urgency":       float64(p.Urgency) / 100,
			"value":         float64(p.Value) / 100,
			"response_rate": ea.ResponseRate,
		},
		ExpiresAt: expires,
		CreatedAt: now,
	}}

	if len(p.PredictedActions) > 0 {
		action := p.PredictedActions[0]
		preds = append(preds, domain.Prediction{
			ID:             newID(),
			PredictionType: "next_action",
			Prediction:     n.text(tplPredictionNextAction, "action", action),
			Probability:    float64(p.Engagement) / 100,
			Timeframe:      p.DecisionTimeframe,
			Factors: map[string]float64{
				"engagement":    float64(p.Engagement) / 100,
				"response_rate": ea.ResponseRate,
			},
			ExpiresAt: expires,
			CreatedAt: now,
		})
	}
	return preds
}
