// Package intelligence implements the lead intelligence scoring engine.
//
// For one subject (a contact, optionally tied to a lead) the service collects
// email threads, tasks and calendar events, derives engagement, urgency and
// value sub-scores, combines them into an overall score and a conversion
// probability, and persists the result as a single IntelligenceProfile with
// append-only insights and predictions plus a 1:1 optimization profile.
//
// Scoring, prediction, insight and optimization steps are pure functions of
// their inputs and the evaluation time. The Service owns the side effects:
// the freshness gate, the per-subject critical section and the transactional
// write through Repository.
//
// Repository and SignalSource implementations live in repository/postgres/.
package intelligence
