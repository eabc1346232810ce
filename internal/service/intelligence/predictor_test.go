package intelligence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadintel/internal/domain"
)

func TestPredictActions(t *testing.T) {
	tests := []struct {
		name  string
		trend domain.EngagementTrend
		tasks []domain.Task
		lead  *domain.Lead
		want  []string
	}{
		{"nothing fires", domain.TrendStable, completedTasks(2), nil, []string{}},
		{"increasing trend", domain.TrendIncreasing, nil, nil, []string{ActionScheduleFollowUp, ActionSendInfo}},
		{"overdue task once", domain.TrendStable, overdueTasks(3), nil, []string{ActionCompleteOverdue}},
		{"probable lead", domain.TrendNone, nil, &domain.Lead{Probability: ptrInt(61)}, []string{ActionPrepareContract, ActionScheduleShowing}},
		{"probability 60 is not enough", domain.TrendNone, nil, &domain.Lead{Probability: ptrInt(60)}, []string{}},
		{
			"all rules in order",
			domain.TrendIncreasing, overdueTasks(1), &domain.Lead{Probability: ptrInt(90)},
			[]string{ActionScheduleFollowUp, ActionSendInfo, ActionCompleteOverdue, ActionPrepareContract, ActionScheduleShowing},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PredictActions(tt.trend, tt.tasks, tt.lead, baseNow)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), maxPredictedActions)
		})
	}
}

func TestPredictActions_OnlyPendingOverdueTasks(t *testing.T) {
	due := baseNow.Add(-time.Hour)
	tasks := []domain.Task{{ID: "x", Status: "waiting", DueAt: &due}}
	assert.Empty(t, PredictActions(domain.TrendStable, tasks, nil, baseNow))
}

func TestDetermineStyle(t *testing.T) {
	assert.Equal(t, domain.StyleRelationship, DetermineStyle(threads("a", 7, 3, baseNow)))
	assert.Equal(t, domain.StyleDirect, DetermineStyle([]domain.EmailThread{thread("a", baseNow, 1, ""), thread("b", baseNow, 4, "")}))
	assert.Equal(t, domain.StyleProfessional, DetermineStyle(threads("a", 2, 2, baseNow)))
	assert.Equal(t, domain.StyleProfessional, DetermineStyle(nil))
}

func messagesAt(loc *time.Location, hours ...int) []domain.EmailThread {
	th := domain.EmailThread{ID: "t", UpdatedAt: baseNow}
	for _, h := range hours {
		th.Messages = append(th.Messages, domain.Message{SentAt: time.Date(2026, 3, 2, h, 15, 0, 0, loc)})
	}
	return []domain.EmailThread{th}
}

func TestOptimalContactTime(t *testing.T) {
	utc := time.UTC
	assert.Equal(t, domain.ContactMorning, OptimalContactTime(nil, utc))
	assert.Equal(t, domain.ContactAfternoon, OptimalContactTime(messagesAt(utc, 13, 14, 9), utc))
	assert.Equal(t, domain.ContactEvening, OptimalContactTime(messagesAt(utc, 18, 21, 12), utc))
	assert.Equal(t, domain.ContactMorning, OptimalContactTime(messagesAt(utc, 6, 12), utc), "tie goes to morning")
	assert.Equal(t, domain.ContactAfternoon, OptimalContactTime(messagesAt(utc, 16, 17), utc), "tie goes to afternoon over evening")
	assert.Equal(t, domain.ContactMorning, OptimalContactTime(messagesAt(utc, 22, 23, 2, 5), utc), "night hours are not counted")
}

func TestOptimalContactTime_UsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ts := messagesAt(ny, 19, 20)
	assert.Equal(t, domain.ContactEvening, OptimalContactTime(ts, ny))
	// 19:15 and 20:15 in New York fall after midnight UTC
	assert.Equal(t, domain.ContactMorning, OptimalContactTime(ts, time.UTC))
}

func TestDecisionTimeframe(t *testing.T) {
	in := func(days int) *domain.Lead {
		d := baseNow.Add(time.Duration(days) * 24 * time.Hour)
		return &domain.Lead{ExpectedCloseDate: &d}
	}
	ms := func(d time.Duration) domain.EngagementAnalysis {
		return domain.EngagementAnalysis{AverageResponseTime: float64(d / time.Millisecond)}
	}

	assert.Equal(t, domain.TimeframeImmediate, DecisionTimeframe(ms(time.Hour), nil, baseNow))
	assert.Equal(t, domain.TimeframeLongTerm, DecisionTimeframe(ms(2*time.Hour), nil, baseNow), "2h exactly is not immediate")
	assert.Equal(t, domain.TimeframeLongTerm, DecisionTimeframe(ms(0), nil, baseNow), "no replies is not immediate")
	assert.Equal(t, domain.TimeframeShortTerm, DecisionTimeframe(ms(0), in(30), baseNow))
	assert.Equal(t, domain.TimeframeMedium, DecisionTimeframe(ms(3*time.Hour), in(31), baseNow))
	assert.Equal(t, domain.TimeframeMedium, DecisionTimeframe(ms(0), in(90), baseNow))
	assert.Equal(t, domain.TimeframeLongTerm, DecisionTimeframe(ms(0), in(91), baseNow))
	assert.Equal(t, domain.TimeframeImmediate, DecisionTimeframe(ms(time.Minute), in(200), baseNow))
}

func TestRecommend(t *testing.T) {
	n := &narrator{r: NewRenderer(nil), bindings: map[string]interface{}{
		"engagement": 75, "urgency": 85, "value": 90, "response_rate": 0.2,
	}}

	recs := recommend(n, domain.Scores{Engagement: 75, Urgency: 85, Value: 90}, 0.2)
	require.NoError(t, n.err)
	require.Len(t, recs, 3)
	assert.Contains(t, recs[0], "Prioritize immediate outreach")
	assert.Contains(t, recs[1], "only 20% of email threads")
	assert.Contains(t, recs[2], "Respond within 2 hours")

	n = &narrator{r: NewRenderer(nil), bindings: map[string]interface{}{"engagement": 40, "value": 85}}
	recs = recommend(n, domain.Scores{Engagement: 40, Urgency: 10, Value: 85}, 0.5)
	require.Len(t, recs, 1)
	assert.Equal(t, "Personalize outreach: value score is 85 but engagement is only 40.", recs[0])

	assert.Empty(t, recommend(n, domain.Scores{Engagement: 50, Urgency: 50, Value: 50}, 0.3))
}

func TestBuildPredictions(t *testing.T) {
	p := &domain.IntelligenceProfile{
		Scores:            domain.Scores{Engagement: 62, ConversionProbability: 0.71},
		DecisionTimeframe: domain.TimeframeShortTerm,
		PredictedActions:  []string{ActionCompleteOverdue, ActionPrepareContract},
	}
	n := &narrator{r: NewRenderer(nil), bindings: map[string]interface{}{
		"name": "Jane Doe", "probability": 0.71, "timeframe": "short_term",
	}}
	ids := 0
	newID := func() string { ids++; return "id-" + string(rune('0'+ids)) }

	preds := buildPredictions(n, p, domain.EngagementAnalysis{ResponseRate: 0.5}, 7*24*time.Hour, baseNow, newID)
	require.NoError(t, n.err)
	require.Len(t, preds, 2)

	assert.Equal(t, "conversion", preds[0].PredictionType)
	assert.Equal(t, 0.71, preds[0].Probability)
	assert.Equal(t, domain.TimeframeShortTerm, preds[0].Timeframe)
	assert.Equal(t, "Jane Doe is 71% likely to convert (short term).", preds[0].Prediction)
	assert.Equal(t, baseNow.Add(7*24*time.Hour), preds[0].ExpiresAt)

	assert.Equal(t, "next_action", preds[1].PredictionType)
	assert.Equal(t, "Next likely step: Complete overdue tasks.", preds[1].Prediction)
	assert.InDelta(t, 0.62, preds[1].Probability, 1e-9)

	p.PredictedActions = nil
	assert.Len(t, buildPredictions(n, p, domain.EngagementAnalysis{}, time.Hour, baseNow, newID), 1)
}
