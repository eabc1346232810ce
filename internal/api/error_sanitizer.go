package api

import (
	"errors"
	"net/http"

	"github.com/ignite/leadintel/internal/pkg/httputil"
	"github.com/ignite/leadintel/internal/pkg/logger"
	"github.com/ignite/leadintel/internal/service/intelligence"
)

// publicErrors are the only messages a client ever sees for 4xx service
// errors. Wrapped causes (driver errors, IDs) stay in the logs.
var publicErrors = []error{
	intelligence.ErrMissingSubject,
	intelligence.ErrAmbiguousSubject,
	intelligence.ErrSubjectNotFound,
	intelligence.ErrProfileNotFound,
	intelligence.ErrAnalysisInProgress,
}

func publicMessage(err error, fallback string) string {
	for _, pub := range publicErrors {
		if errors.Is(err, pub) {
			return pub.Error()
		}
	}
	return fallback
}

// respondServiceError maps an intelligence error kind to a status code.
func respondServiceError(w http.ResponseWriter, err error) {
	switch intelligence.KindOf(err) {
	case intelligence.KindBadRequest:
		httputil.BadRequest(w, publicMessage(err, "invalid request"))
	case intelligence.KindNotFound:
		httputil.NotFound(w, publicMessage(err, "not found"))
	case intelligence.KindConflict:
		logger.Warn("api: conflicting analysis", "error", err)
		httputil.Conflict(w, publicMessage(err, "conflict"))
	default:
		public := "internal server error"
		if errors.Is(err, intelligence.ErrAnalysisFailed) {
			public = intelligence.ErrAnalysisFailed.Error()
		}
		httputil.InternalError(w, err, public)
	}
}
