package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/leadintel/internal/domain"
	"github.com/ignite/leadintel/internal/service/intelligence"
)

// SignalRepo implements intelligence.SignalSource over the CRM tables. It
// only reads; encrypted columns are returned as stored.
type SignalRepo struct{ db *sql.DB }

// NewSignalRepo creates a Postgres-backed signal source.
func NewSignalRepo(db *sql.DB) *SignalRepo { return &SignalRepo{db: db} }

func (r *SignalRepo) GetContact(ctx context.Context, orgID, contactID string) (*domain.Contact, error) {
	var c domain.Contact
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, COALESCE(first_name, ''), COALESCE(last_name, ''),
		       email_encrypted, updated_at
		FROM contacts
		WHERE id = $1 AND organization_id = $2
	`, contactID, orgID).Scan(&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.EncryptedEmail, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intelligence.ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

func (r *SignalRepo) GetLead(ctx context.Context, orgID, leadID string) (*domain.Lead, error) {
	var (
		l           domain.Lead
		value       sql.NullFloat64
		probability sql.NullInt64
		closeDate   sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT l.id, l.organization_id, COALESCE(l.contact_id, ''), l.property_value, l.probability,
		       COALESCE(s.name, ''), COALESCE(s.stage_order, 0), l.expected_close_date, l.updated_at
		FROM leads l
		LEFT JOIN pipeline_stages s ON s.id = l.stage_id
		WHERE l.id = $1 AND l.organization_id = $2
	`, leadID, orgID).Scan(&l.ID, &l.OrganizationID, &l.ContactID, &value, &probability,
		&l.StageName, &l.StageOrder, &closeDate, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, intelligence.ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if value.Valid {
		l.PropertyValue = &value.Float64
	}
	if probability.Valid {
		p := int(probability.Int64)
		l.Probability = &p
	}
	if closeDate.Valid {
		l.ExpectedCloseDate = &closeDate.Time
	}
	return &l, nil
}

// RecentThreads loads the newest threads, then their messages in one query.
func (r *SignalRepo) RecentThreads(ctx context.Context, orgID string, limit int) ([]domain.EmailThread, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(subject, ''), participants_encrypted, COALESCE(ai_category, ''), updated_at
		FROM email_threads
		WHERE organization_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var (
		threads []domain.EmailThread
		ids     []string
		index   = map[string]int{}
	)
	for rows.Next() {
		var t domain.EmailThread
		if err := rows.Scan(&t.ID, &t.Subject, &t.EncryptedParticipants, &t.AICategory, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		index[t.ID] = len(threads)
		ids = append(ids, t.ID)
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	if len(ids) == 0 {
		return threads, nil
	}

	msgs, err := r.db.QueryContext(ctx, `
		SELECT id, thread_id, direction, sent_at, body_encrypted
		FROM email_messages
		WHERE thread_id = ANY($1)
		ORDER BY sent_at, id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer msgs.Close()

	for msgs.Next() {
		var (
			m        domain.Message
			threadID string
			dir      string
		)
		if err := msgs.Scan(&m.ID, &threadID, &dir, &m.SentAt, &m.EncryptedBody); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Direction = domain.MessageDirection(dir)
		if i, ok := index[threadID]; ok {
			threads[i].Messages = append(threads[i].Messages, m)
		}
	}
	return threads, msgs.Err()
}

func (r *SignalRepo) Tasks(ctx context.Context, orgID, contactID, leadID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(title, ''), status, due_at, updated_at
		FROM tasks
		WHERE organization_id = $1
		  AND (contact_id = $2 OR lead_id = NULLIF($3, ''))
		ORDER BY updated_at DESC
	`, orgID, contactID, leadID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		var (
			t      domain.Task
			status string
			due    sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Title, &status, &due, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = domain.TaskStatus(status)
		if due.Valid {
			t.DueAt = &due.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SignalRepo) EventsSince(ctx context.Context, orgID string, since time.Time) ([]domain.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(title, ''), start_time, attendees_encrypted
		FROM calendar_events
		WHERE organization_id = $1 AND start_time >= $2
		ORDER BY start_time DESC
	`, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.CalendarEvent
	for rows.Next() {
		var e domain.CalendarEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.Start, &e.EncryptedAttendees); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
