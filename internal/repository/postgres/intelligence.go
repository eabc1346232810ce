package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/leadintel/internal/domain"
	"github.com/ignite/leadintel/internal/service/intelligence"
)

// IntelligenceRepo implements intelligence.Repository against PostgreSQL.
type IntelligenceRepo struct{ db *sql.DB }

// NewIntelligenceRepo creates a Postgres-backed intelligence repository.
func NewIntelligenceRepo(db *sql.DB) *IntelligenceRepo { return &IntelligenceRepo{db: db} }

const profileColumns = `id, organization_id, COALESCE(lead_id, ''), contact_id,
	engagement_score, urgency_score, value_score, overall_score, conversion_probability,
	response_patterns, behavior_metrics, predicted_actions, recommended_actions,
	optimal_contact_time, communication_style, decision_timeframe,
	pain_points, competitor_mentions, price_signals,
	last_analyzed_at, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*domain.IntelligenceProfile, error) {
	var (
		p                             domain.IntelligenceProfile
		patterns, metrics, price      []byte
		predicted, recommended        pq.StringArray
		pains, competitors            pq.StringArray
		contactTime, style, timeframe string
	)
	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.LeadID, &p.ContactID,
		&p.Engagement, &p.Urgency, &p.Value, &p.Overall, &p.ConversionProbability,
		&patterns, &metrics, &predicted, &recommended,
		&contactTime, &style, &timeframe,
		&pains, &competitors, &price,
		&p.LastAnalyzedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalColumns(
		column{"response_patterns", patterns, &p.ResponsePatterns},
		column{"behavior_metrics", metrics, &p.BehaviorMetrics},
		column{"price_signals", price, &p.PriceSignals},
	); err != nil {
		return nil, err
	}
	p.PredictedActions = []string(predicted)
	p.RecommendedActions = []string(recommended)
	p.PainPoints = []string(pains)
	p.CompetitorMentions = []string(competitors)
	p.OptimalContactTime = domain.ContactTime(contactTime)
	p.CommunicationStyle = domain.CommunicationStyle(style)
	p.DecisionTimeframe = domain.DecisionTimeframe(timeframe)
	return &p, nil
}

type column struct {
	name string
	raw  []byte
	dst  interface{}
}

func unmarshalColumns(cols ...column) error {
	for _, c := range cols {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dst); err != nil {
			return fmt.Errorf("decode %s: %w", c.name, err)
		}
	}
	return nil
}

func (r *IntelligenceRepo) GetProfile(ctx context.Context, orgID string, subject domain.SubjectRef) (*domain.IntelligenceProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM lead_intelligence_profiles
		WHERE organization_id = $1 AND subject_key = $2`,
		orgID, subject.Key(),
	)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intelligence.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *IntelligenceRepo) RecentInsights(ctx context.Context, profileID string, limit int) ([]domain.Insight, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, type, category, title, description, confidence, impact,
		       action_required, suggested_actions, data_points, created_at
		FROM lead_intelligence_insights
		WHERE profile_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var out []domain.Insight
	for rows.Next() {
		var (
			in      domain.Insight
			impact  string
			actions pq.StringArray
			points  []byte
		)
		if err := rows.Scan(&in.ID, &in.ProfileID, &in.Type, &in.Category, &in.Title, &in.Description,
			&in.Confidence, &impact, &in.ActionRequired, &actions, &points, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		if err := unmarshalColumns(column{"data_points", points, &in.DataPoints}); err != nil {
			return nil, err
		}
		in.Impact = domain.InsightImpact(impact)
		in.SuggestedActions = []string(actions)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *IntelligenceRepo) RecentPredictions(ctx context.Context, profileID string, limit int) ([]domain.Prediction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, profile_id, prediction_type, prediction, probability, timeframe,
		       factors, expires_at, created_at
		FROM lead_intelligence_predictions
		WHERE profile_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		var (
			p         domain.Prediction
			timeframe string
			factors   []byte
		)
		if err := rows.Scan(&p.ID, &p.ProfileID, &p.PredictionType, &p.Prediction, &p.Probability,
			&timeframe, &factors, &p.ExpiresAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if err := unmarshalColumns(column{"factors", factors, &p.Factors}); err != nil {
			return nil, err
		}
		p.Timeframe = domain.DecisionTimeframe(timeframe)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *IntelligenceRepo) GetOptimization(ctx context.Context, profileID string) (*domain.OptimizationProfile, error) {
	var (
		o                                  domain.OptimizationProfile
		channels, times, patterns, content []byte
		triggers                           pq.StringArray
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT profile_id, channel_preferences, best_contact_times, response_patterns,
		       content_preferences, engagement_triggers, updated_at
		FROM lead_optimization_profiles
		WHERE profile_id = $1
	`, profileID).Scan(&o.ProfileID, &channels, &times, &patterns, &content, &triggers, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get optimization: %w", err)
	}
	if err := unmarshalColumns(
		column{"channel_preferences", channels, &o.ChannelPreferences},
		column{"best_contact_times", times, &o.BestContactTimes},
		column{"response_patterns", patterns, &o.ResponsePatterns},
		column{"content_preferences", content, &o.ContentPreferences},
	); err != nil {
		return nil, err
	}
	o.EngagementTriggers = []string(triggers)
	return &o, nil
}

// SaveAnalysis writes one recomputation in a single transaction: the profile
// upsert bumps version, insights and predictions are appended and the
// optimization profile is upserted.
func (r *IntelligenceRepo) SaveAnalysis(ctx context.Context, a *domain.Analysis) (*domain.IntelligenceProfile, error) {
	p := a.Profile

	patterns, metrics, price, err := marshal3(p.ResponsePatterns, p.BehaviorMetrics, p.PriceSignals)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO lead_intelligence_profiles (
			id, organization_id, subject_key, lead_id, contact_id,
			engagement_score, urgency_score, value_score, overall_score, conversion_probability,
			response_patterns, behavior_metrics, predicted_actions, recommended_actions,
			optimal_contact_time, communication_style, decision_timeframe,
			pain_points, competitor_mentions, price_signals,
			last_analyzed_at, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20,
			$21, 1, $21, $21
		)
		ON CONFLICT (organization_id, subject_key) DO UPDATE SET
			contact_id = EXCLUDED.contact_id,
			engagement_score = EXCLUDED.engagement_score,
			urgency_score = EXCLUDED.urgency_score,
			value_score = EXCLUDED.value_score,
			overall_score = EXCLUDED.overall_score,
			conversion_probability = EXCLUDED.conversion_probability,
			response_patterns = EXCLUDED.response_patterns,
			behavior_metrics = EXCLUDED.behavior_metrics,
			predicted_actions = EXCLUDED.predicted_actions,
			recommended_actions = EXCLUDED.recommended_actions,
			optimal_contact_time = EXCLUDED.optimal_contact_time,
			communication_style = EXCLUDED.communication_style,
			decision_timeframe = EXCLUDED.decision_timeframe,
			pain_points = EXCLUDED.pain_points,
			competitor_mentions = EXCLUDED.competitor_mentions,
			price_signals = EXCLUDED.price_signals,
			last_analyzed_at = EXCLUDED.last_analyzed_at,
			version = lead_intelligence_profiles.version + 1,
			orphaned_at = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING id, version, created_at
	`,
		p.ID, p.OrganizationID, p.Subject().Key(), p.LeadID, p.ContactID,
		p.Engagement, p.Urgency, p.Value, p.Overall, p.ConversionProbability,
		patterns, metrics, pq.Array(p.PredictedActions), pq.Array(p.RecommendedActions),
		string(p.OptimalContactTime), string(p.CommunicationStyle), string(p.DecisionTimeframe),
		pq.Array(p.PainPoints), pq.Array(p.CompetitorMentions), price,
		p.LastAnalyzedAt,
	).Scan(&p.ID, &p.Version, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	p.UpdatedAt = p.LastAnalyzedAt

	for i := range a.Insights {
		in := &a.Insights[i]
		in.ProfileID = p.ID
		points, err := json.Marshal(in.DataPoints)
		if err != nil {
			return nil, fmt.Errorf("encode data_points: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lead_intelligence_insights (
				id, profile_id, type, category, title, description, confidence, impact,
				action_required, suggested_actions, data_points, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, in.ID, in.ProfileID, in.Type, in.Category, in.Title, in.Description, in.Confidence,
			string(in.Impact), in.ActionRequired, pq.Array(in.SuggestedActions), points, in.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert insight: %w", err)
		}
	}

	for i := range a.Predictions {
		pr := &a.Predictions[i]
		pr.ProfileID = p.ID
		factors, err := json.Marshal(pr.Factors)
		if err != nil {
			return nil, fmt.Errorf("encode factors: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lead_intelligence_predictions (
				id, profile_id, prediction_type, prediction, probability, timeframe,
				factors, expires_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, pr.ID, pr.ProfileID, pr.PredictionType, pr.Prediction, pr.Probability,
			string(pr.Timeframe), factors, pr.ExpiresAt, pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert prediction: %w", err)
		}
	}

	o := &a.Optimization
	o.ProfileID = p.ID
	channels, times, err := marshal2(o.ChannelPreferences, o.BestContactTimes)
	if err != nil {
		return nil, err
	}
	optPatterns, content, err := marshal2(o.ResponsePatterns, o.ContentPreferences)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO lead_optimization_profiles (
			profile_id, channel_preferences, best_contact_times, response_patterns,
			content_preferences, engagement_triggers, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (profile_id) DO UPDATE SET
			channel_preferences = EXCLUDED.channel_preferences,
			best_contact_times = EXCLUDED.best_contact_times,
			response_patterns = EXCLUDED.response_patterns,
			content_preferences = EXCLUDED.content_preferences,
			engagement_triggers = EXCLUDED.engagement_triggers,
			updated_at = EXCLUDED.updated_at
	`, o.ProfileID, channels, times, optPatterns, content, pq.Array(o.EngagementTriggers), o.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert optimization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit analysis: %w", err)
	}
	a.Profile = p
	return &p, nil
}

func (r *IntelligenceRepo) TopProfiles(ctx context.Context, orgID string, limit int) ([]domain.IntelligenceProfile, error) {
	return r.listProfiles(ctx, `
		SELECT `+profileColumns+` FROM lead_intelligence_profiles
		WHERE organization_id = $1
		ORDER BY overall_score DESC, id
		LIMIT $2
	`, orgID, limit)
}

func (r *IntelligenceRepo) StaleProfiles(ctx context.Context, olderThan time.Time, limit int) ([]domain.IntelligenceProfile, error) {
	return r.listProfiles(ctx, `
		SELECT `+profileColumns+` FROM lead_intelligence_profiles
		WHERE last_analyzed_at < $1 AND orphaned_at IS NULL
		ORDER BY last_analyzed_at
		LIMIT $2
	`, olderThan, limit)
}

func (r *IntelligenceRepo) MarkOrphaned(ctx context.Context, profileID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE lead_intelligence_profiles SET orphaned_at = $2
		WHERE id = $1 AND orphaned_at IS NULL
	`, profileID, at); err != nil {
		return fmt.Errorf("mark profile %s orphaned: %w", profileID, err)
	}
	return nil
}

func (r *IntelligenceRepo) listProfiles(ctx context.Context, query string, args ...interface{}) ([]domain.IntelligenceProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.IntelligenceProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func marshal2(a, b interface{}) ([]byte, []byte, error) {
	ja, err := json.Marshal(a)
	if err != nil {
		return nil, nil, fmt.Errorf("encode json column: %w", err)
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return nil, nil, fmt.Errorf("encode json column: %w", err)
	}
	return ja, jb, nil
}

func marshal3(a, b, c interface{}) ([]byte, []byte, []byte, error) {
	ja, jb, err := marshal2(a, b)
	if err != nil {
		return nil, nil, nil, err
	}
	jc, err := json.Marshal(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode json column: %w", err)
	}
	return ja, jb, jc, nil
}
