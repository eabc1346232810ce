package intelligence

import (
	"sort"
	"time"

	"github.com/ignite/leadintel/internal/domain"
)

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

var categoryTriggers = map[string]string{
	domain.CategoryHotLead:        "fast_response",
	domain.CategoryShowingRequest: "property_showings",
	domain.CategoryContract:       "contract_progress",
	domain.CategorySellerLead:     "market_valuation",
	domain.CategoryBuyerLead:      "new_listings",
	domain.CategoryPriceInquiry:   "pricing_details",
}

// DefaultChannelPreferences are fixed weights; they are not yet learned
// from signals.
func DefaultChannelPreferences() map[string]float64 {
	return map[string]float64{"email": 0.8, "phone": 0.6, "text": 0.4}
}

// BestContactTimes maps a part of day to concrete weekday/hour windows.
func BestContactTimes(ct domain.ContactTime) []domain.ContactWindow {
	var hours []int
	switch ct {
	case domain.ContactAfternoon:
		hours = []int{13, 14, 15}
	case domain.ContactEvening:
		hours = []int{17, 18, 19}
	default:
		hours = []int{9, 10, 11}
	}
	windows := make([]domain.ContactWindow, 0, len(weekdays)+1)
	for _, d := range weekdays {
		windows = append(windows, domain.ContactWindow{Weekday: d, Hours: append([]int(nil), hours...)})
	}
	if ct == domain.ContactEvening {
		windows = append(windows, domain.ContactWindow{Weekday: time.Saturday, Hours: []int{10, 11}})
	}
	return windows
}

// ContentPreferencesFor mirrors the communication style.
func ContentPreferencesFor(style domain.CommunicationStyle) domain.ContentPreferences {
	switch style {
	case domain.StyleRelationship:
		return domain.ContentPreferences{Style: style, Tone: "warm", Length: "detailed", Personalization: "high"}
	case domain.StyleDirect:
		return domain.ContentPreferences{Style: style, Tone: "concise", Length: "short", Personalization: "medium"}
	default:
		return domain.ContentPreferences{Style: domain.StyleProfessional, Tone: "formal", Length: "medium", Personalization: "medium"}
	}
}

// EngagementTriggers lists what the subject has responded to, sorted.
func EngagementTriggers(threads []domain.EmailThread, trend domain.EngagementTrend, price domain.PriceSignals) []string {
	set := map[string]bool{}
	for _, t := range threads {
		if trig, ok := categoryTriggers[t.AICategory]; ok {
			set[trig] = true
		}
	}
	if trend == domain.TrendIncreasing {
		set["momentum"] = true
	}
	if len(price.Mentions) > 0 {
		set["budget_discussion"] = true
	}
	if price.PreApproved {
		set["financing_ready"] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func buildOptimization(p *domain.IntelligenceProfile, threads []domain.EmailThread, now time.Time) domain.OptimizationProfile {
	return domain.OptimizationProfile{
		ProfileID:          p.ID,
		ChannelPreferences: DefaultChannelPreferences(),
		BestContactTimes:   BestContactTimes(p.OptimalContactTime),
		ResponsePatterns:   p.ResponsePatterns,
		ContentPreferences: ContentPreferencesFor(p.CommunicationStyle),
		EngagementTriggers: EngagementTriggers(threads, p.BehaviorMetrics.EngagementTrend, p.PriceSignals),
		UpdatedAt:          now,
	}
}
