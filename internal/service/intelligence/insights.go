package intelligence

import (
	"time"

	"github.com/ignite/leadintel/internal/domain"
)

// generateInsights runs the independent threshold checks. Each fires at
// most once per recomputation; nothing is deduplicated against history.
func generateInsights(n *narrator, s domain.Scores, now time.Time, newID func() string) []domain.Insight {
	points := map[string]float64{
		"engagement_score":       float64(s.Engagement),
		"urgency_score":          float64(s.Urgency),
		"value_score":            float64(s.Value),
		"overall_score":          float64(s.Overall),
		"conversion_probability": s.ConversionProbability,
	}
	snapshot := func() map[string]float64 {
		cp := make(map[string]float64, len(points))
		for k, v := range points {
			cp[k] = v
		}
		return cp
	}

	insights := []domain.Insight{}
	if s.Engagement > 80 {
		insights = append(insights, domain.Insight{
			ID:               newID(),
			Type:             "high_engagement",
			Category:         "engagement",
			Title:            n.text(tplInsightEngagementTitle),
			Description:      n.text(tplInsightEngagementDesc),
			Confidence:       0.9,
			Impact:           domain.ImpactHigh,
			ActionRequired:   true,
			SuggestedActions: []string{"Schedule a call while interest is high", "Share new listings that match their criteria"},
			DataPoints:       snapshot(),
			CreatedAt:        now,
		})
	}
	if s.Urgency > 70 {
		insights = append(insights, domain.Insight{
			ID:               newID(),
			Type:             "time_sensitive",
			Category:         "urgency",
			Title:            n.text(tplInsightUrgencyTitle),
			Description:      n.text(tplInsightUrgencyDesc),
			Confidence:       0.85,
			Impact:           domain.ImpactHigh,
			ActionRequired:   true,
			SuggestedActions: []string{"Respond within 2 hours", "Clear overdue tasks"},
			DataPoints:       snapshot(),
			CreatedAt:        now,
		})
	}
	if s.ConversionProbability > 0.7 {
		insights = append(insights, domain.Insight{
			ID:               newID(),
			Type:             "high_conversion",
			Category:         "conversion",
			Title:            n.text(tplInsightConversionTitle),
			Description:      n.text(tplInsightConversionDesc),
			Confidence:       s.ConversionProbability,
			Impact:           domain.ImpactHigh,
			ActionRequired:   true,
			SuggestedActions: []string{"Prepare contract documents", "Confirm financing status"},
			DataPoints:       snapshot(),
			CreatedAt:        now,
		})
	}
	return insights
}
