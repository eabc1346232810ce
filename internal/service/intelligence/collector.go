package intelligence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/leadintel/internal/domain"
	"github.com/ignite/leadintel/internal/pkg/fieldcrypt"
	"github.com/ignite/leadintel/internal/pkg/logger"
)

// Collector gathers the signals that belong to one subject. Matching is done
// per call against the subject's decrypted email; nothing about the match is
// persisted.
type Collector struct {
	src         SignalSource
	dec         fieldcrypt.Decrypter
	threadLimit int
	lookback    time.Duration
}

// NewCollector creates a collector reading at most threadLimit recent
// threads and calendar events from the last lookback.
func NewCollector(src SignalSource, dec fieldcrypt.Decrypter, threadLimit int, lookback time.Duration) *Collector {
	if threadLimit <= 0 {
		threadLimit = 50
	}
	if lookback <= 0 {
		lookback = 90 * 24 * time.Hour
	}
	return &Collector{src: src, dec: dec, threadLimit: threadLimit, lookback: lookback}
}

// Collect returns the subject's threads, tasks, events and decrypted message
// bodies. A contact email that cannot be decrypted yields empty signals, not
// an error. Errors are returned only when the source itself fails.
func (c *Collector) Collect(ctx context.Context, orgID string, contact *domain.Contact, lead *domain.Lead, now time.Time) (domain.Signals, error) {
	log := logger.With("org_id", orgID, "contact_id", contact.ID)
	var sig domain.Signals

	email := decryptField(ctx, c.dec, orgID, contact.EncryptedEmail, fieldcrypt.PurposeContactEmail)
	if !email.Known() || strings.TrimSpace(email.Plain) == "" {
		log.Warn("contact email unavailable, scoring without signals", "error", errString(email.Err))
		return sig, nil
	}

	threads, err := c.src.RecentThreads(ctx, orgID, c.threadLimit)
	if err != nil {
		return sig, fmt.Errorf("load threads: %w", err)
	}
	sig.Threads = c.matchThreads(ctx, log, orgID, threads, email.Plain)

	leadID := ""
	if lead != nil {
		leadID = lead.ID
	}
	sig.Tasks, err = c.src.Tasks(ctx, orgID, contact.ID, leadID)
	if err != nil {
		return sig, fmt.Errorf("load tasks: %w", err)
	}

	events, err := c.src.EventsSince(ctx, orgID, now.Add(-c.lookback))
	if err != nil {
		return sig, fmt.Errorf("load events: %w", err)
	}
	sig.Events = c.matchEvents(ctx, log, orgID, events, email.Plain)

	sig.Bodies = c.decryptBodies(ctx, log, orgID, sig.Threads)
	return sig, nil
}

func (c *Collector) matchThreads(ctx context.Context, log *logger.Logger, orgID string, threads []domain.EmailThread, email string) []domain.EmailThread {
	results := make([]decrypted[domain.EmailThread], 0, len(threads))
	for _, t := range threads {
		results = append(results, decrypted[domain.EmailThread]{
			Record: t,
			Field:  decryptField(ctx, c.dec, orgID, t.EncryptedParticipants, fieldcrypt.PurposeEmailParticipants),
		})
	}

	known, unknown := partition(results)
	for _, u := range unknown {
		log.Warn("skipping thread with unreadable participants", "thread_id", u.Record.ID, "error", u.Field.Err.Error())
	}

	var out []domain.EmailThread
	for _, k := range known {
		if participantsContain(k.Field.Plain, email) {
			out = append(out, k.Record)
		}
	}
	return out
}

func (c *Collector) matchEvents(ctx context.Context, log *logger.Logger, orgID string, events []domain.CalendarEvent, email string) []domain.CalendarEvent {
	results := make([]decrypted[domain.CalendarEvent], 0, len(events))
	for _, e := range events {
		results = append(results, decrypted[domain.CalendarEvent]{
			Record: e,
			Field:  decryptField(ctx, c.dec, orgID, e.EncryptedAttendees, fieldcrypt.PurposeCalendarAttendees),
		})
	}

	known, unknown := partition(results)
	for _, u := range unknown {
		log.Warn("skipping event with unreadable attendees", "event_id", u.Record.ID, "error", u.Field.Err.Error())
	}

	var out []domain.CalendarEvent
	for _, k := range known {
		if attendeesInclude(parseAttendees(k.Field.Plain), email) {
			out = append(out, k.Record)
		}
	}
	return out
}

func (c *Collector) decryptBodies(ctx context.Context, log *logger.Logger, orgID string, threads []domain.EmailThread) []string {
	var bodies []string
	for _, t := range threads {
		for _, m := range t.Messages {
			if len(m.EncryptedBody) == 0 {
				continue
			}
			body := decryptField(ctx, c.dec, orgID, m.EncryptedBody, fieldcrypt.PurposeEmailBody)
			if !body.Known() {
				log.Debug("message body unavailable for extraction", "message_id", m.ID)
				continue
			}
			bodies = append(bodies, body.Plain)
		}
	}
	return bodies
}

func errString(err error) string {
	if err == nil {
		return "empty"
	}
	return err.Error()
}
