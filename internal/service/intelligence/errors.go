package intelligence

import "errors"

// Sentinel errors for the intelligence service layer.
var (
	ErrMissingSubject     = errors.New("lead_id or contact_id is required")
	ErrAmbiguousSubject   = errors.New("only one of lead_id or contact_id may be given")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrProfileNotFound    = errors.New("intelligence profile not found")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrAnalysisFailed     = errors.New("failed to analyze subject")
)

// Kind classifies an error independently of any transport.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is returned by Service methods. Err is one of the sentinels above,
// possibly wrapping the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrMissingSubject), errors.Is(err, ErrAmbiguousSubject):
		return KindBadRequest
	case errors.Is(err, ErrSubjectNotFound), errors.Is(err, ErrProfileNotFound):
		return KindNotFound
	case errors.Is(err, ErrAnalysisInProgress):
		return KindConflict
	}
	return KindInternal
}

func opError(op string, kind Kind, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}
