package domain

import "time"

// EngagementTrend classifies how message activity is moving.
type EngagementTrend string

const (
	TrendNone       EngagementTrend = "none"
	TrendIncreasing EngagementTrend = "increasing"
	TrendStable     EngagementTrend = "stable"
	TrendDecreasing EngagementTrend = "decreasing"
)

// CommunicationStyle is the tone the contact responds to.
type CommunicationStyle string

const (
	StyleRelationship CommunicationStyle = "relationship-focused"
	StyleDirect       CommunicationStyle = "direct"
	StyleProfessional CommunicationStyle = "professional"
)

// ContactTime is a coarse part of the day.
type ContactTime string

const (
	ContactMorning   ContactTime = "morning"
	ContactAfternoon ContactTime = "afternoon"
	ContactEvening   ContactTime = "evening"
)

// DecisionTimeframe estimates how soon the subject is likely to decide.
type DecisionTimeframe string

const (
	TimeframeImmediate DecisionTimeframe = "immediate"
	TimeframeShortTerm DecisionTimeframe = "short_term"
	TimeframeMedium    DecisionTimeframe = "medium_term"
	TimeframeLongTerm  DecisionTimeframe = "long_term"
)

// EngagementAnalysis is derived from email threads alone.
type EngagementAnalysis struct {
	ResponseRate        float64         `json:"response_rate"`
	AverageResponseTime float64         `json:"average_response_time_ms"`
	Trend               EngagementTrend `json:"trend"`
}

// ResponsePatterns summarises thread shapes.
type ResponsePatterns struct {
	AverageThreadLength float64 `json:"average_thread_length"`
	InitiatedThreads    int     `json:"initiated_threads"`
	RespondedThreads    int     `json:"responded_threads"`
}

// BehaviorMetrics is the cross-signal activity summary stored with a profile.
type BehaviorMetrics struct {
	EmailResponseRate   float64         `json:"email_response_rate"`
	AverageResponseTime float64         `json:"average_response_time_ms"`
	EngagementTrend     EngagementTrend `json:"engagement_trend"`
	TaskCompletionRate  float64         `json:"task_completion_rate"`
	MeetingCount        int             `json:"meeting_count"`
	LastActivity        time.Time       `json:"last_activity"`
}

// Scores holds the computed sub-scores. Engagement, Urgency, Value and Overall
// are in [0,100]; ConversionProbability is in [0,1].
type Scores struct {
	Engagement            int     `json:"engagement_score"`
	Urgency               int     `json:"urgency_score"`
	Value                 int     `json:"value_score"`
	Overall               int     `json:"overall_score"`
	ConversionProbability float64 `json:"conversion_probability"`
}

// PriceSignals captures budget cues found in message bodies.
type PriceSignals struct {
	Mentions           []string `json:"mentions"`
	BudgetMin          float64  `json:"budget_min,omitempty"`
	BudgetMax          float64  `json:"budget_max,omitempty"`
	PreApproved        bool     `json:"pre_approved"`
	FinancingMentioned bool     `json:"financing_mentioned"`
}

// IntelligenceProfile is the single live scoring record of a subject within
// an organization.
type IntelligenceProfile struct {
	ID                 string             `json:"id" db:"id"`
	OrganizationID     string             `json:"organization_id" db:"organization_id"`
	LeadID             string             `json:"lead_id,omitempty" db:"lead_id"`
	ContactID          string             `json:"contact_id" db:"contact_id"`
	Scores                                `json:"scores"`
	ResponsePatterns   ResponsePatterns   `json:"response_patterns" db:"response_patterns"`
	BehaviorMetrics    BehaviorMetrics    `json:"behavior_metrics" db:"behavior_metrics"`
	PredictedActions   []string           `json:"predicted_actions" db:"predicted_actions"`
	RecommendedActions []string           `json:"recommended_actions" db:"recommended_actions"`
	OptimalContactTime ContactTime        `json:"optimal_contact_time" db:"optimal_contact_time"`
	CommunicationStyle CommunicationStyle `json:"communication_style" db:"communication_style"`
	DecisionTimeframe  DecisionTimeframe  `json:"decision_timeframe" db:"decision_timeframe"`
	PainPoints         []string           `json:"pain_points" db:"pain_points"`
	CompetitorMentions []string           `json:"competitor_mentions" db:"competitor_mentions"`
	PriceSignals       PriceSignals       `json:"price_signals" db:"price_signals"`
	LastAnalyzedAt     time.Time          `json:"last_analyzed_at" db:"last_analyzed_at"`
	Version            int64              `json:"version" db:"version"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// Subject returns the reference the profile is keyed on.
func (p *IntelligenceProfile) Subject() SubjectRef {
	return SubjectRef{LeadID: p.LeadID, ContactID: p.ContactID}
}

// InsightImpact grades how much an insight matters.
type InsightImpact string

const (
	ImpactHigh   InsightImpact = "high"
	ImpactMedium InsightImpact = "medium"
	ImpactLow    InsightImpact = "low"
)

// Insight is an immutable, threshold-triggered explanation attached to a profile.
type Insight struct {
	ID               string             `json:"id" db:"id"`
	ProfileID        string             `json:"profile_id" db:"profile_id"`
	Type             string             `json:"type" db:"type"`
	Category         string             `json:"category" db:"category"`
	Title            string             `json:"title" db:"title"`
	Description      string             `json:"description" db:"description"`
	Confidence       float64            `json:"confidence" db:"confidence"`
	Impact           InsightImpact      `json:"impact" db:"impact"`
	ActionRequired   bool               `json:"action_required" db:"action_required"`
	SuggestedActions []string           `json:"suggested_actions" db:"suggested_actions"`
	DataPoints       map[string]float64 `json:"data_points" db:"data_points"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
}

// Prediction is an immutable forward-looking statement attached to a profile.
type Prediction struct {
	ID             string             `json:"id" db:"id"`
	ProfileID      string             `json:"profile_id" db:"profile_id"`
	PredictionType string             `json:"prediction_type" db:"prediction_type"`
	Prediction     string             `json:"prediction" db:"prediction"`
	Probability    float64            `json:"probability" db:"probability"`
	Timeframe      DecisionTimeframe  `json:"timeframe" db:"timeframe"`
	Factors        map[string]float64 `json:"factors" db:"factors"`
	ExpiresAt      time.Time          `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// ContactWindow is a set of preferred hours on one weekday.
type ContactWindow struct {
	Weekday time.Weekday `json:"weekday"`
	Hours   []int        `json:"hours"`
}

// ContentPreferences describes how outreach should be written.
type ContentPreferences struct {
	Style           CommunicationStyle `json:"style"`
	Tone            string             `json:"tone"`
	Length          string             `json:"length"`
	Personalization string             `json:"personalization"`
}

// OptimizationProfile holds the communication preferences derived for a
// profile. There is exactly one per IntelligenceProfile.
type OptimizationProfile struct {
	ProfileID          string             `json:"profile_id" db:"profile_id"`
	ChannelPreferences map[string]float64 `json:"channel_preferences" db:"channel_preferences"`
	BestContactTimes   []ContactWindow    `json:"best_contact_times" db:"best_contact_times"`
	ResponsePatterns   ResponsePatterns   `json:"response_patterns" db:"response_patterns"`
	ContentPreferences ContentPreferences `json:"content_preferences" db:"content_preferences"`
	EngagementTriggers []string           `json:"engagement_triggers" db:"engagement_triggers"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// Analysis is the complete output of one recomputation. It is persisted as a
// unit: either all of it becomes visible or none of it does.
type Analysis struct {
	Profile      IntelligenceProfile
	Insights     []Insight
	Predictions  []Prediction
	Optimization OptimizationProfile
}

// ProfileView is the nested shape returned to callers.
type ProfileView struct {
	Profile      IntelligenceProfile  `json:"profile"`
	Insights     []Insight            `json:"insights"`
	Predictions  []Prediction         `json:"predictions"`
	Optimization *OptimizationProfile `json:"optimization,omitempty"`
	Cached       bool                 `json:"cached"`
}
