package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ignite/leadintel/internal/auth"
	"github.com/ignite/leadintel/internal/config"
	"github.com/ignite/leadintel/internal/pkg/httputil"
	"github.com/ignite/leadintel/internal/pkg/logger"
)

// ErrNoOrganization is returned when a request carries no usable
// organization identity.
var ErrNoOrganization = errors.New("organization context required")

// OrgContextKey is the key for storing organization context
type OrgContextKey struct{}

// OrganizationContext identifies who a request acts for.
type OrganizationContext struct {
	ID     string
	UserID string
}

// SessionResolver looks up a bearer token. auth.Manager implements it.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*auth.Session, error)
}

// OrgResolver extracts the organization a request acts for.
type OrgResolver struct {
	sessions     SessionResolver
	devMode      bool
	defaultOrgID string
}

// NewOrgResolver creates a resolver. sessions may be nil in dev mode.
func NewOrgResolver(sessions SessionResolver, cfg config.ServerConfig) *OrgResolver {
	return &OrgResolver{
		sessions:     sessions,
		devMode:      cfg.DevMode,
		defaultOrgID: cfg.DefaultOrgID,
	}
}

// ExtractOrg resolves the organization with this priority:
// 1. Bearer session token, 2. X-Organization-ID header (dev mode only),
// 3. configured default org (dev mode only).
//
// A bearer token that does not resolve is rejected outright rather than
// falling through to the dev mode fallbacks.
func (o *OrgResolver) ExtractOrg(r *http.Request) (*OrganizationContext, error) {
	if token, ok := auth.BearerToken(r); ok {
		if o.sessions == nil {
			return nil, auth.ErrInvalidSession
		}
		sess, err := o.sessions.Resolve(r.Context(), token)
		if err != nil {
			return nil, err
		}
		return &OrganizationContext{ID: sess.OrganizationID, UserID: sess.UserID}, nil
	}

	if !o.devMode {
		return nil, ErrNoOrganization
	}
	if raw := r.Header.Get("X-Organization-ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, ErrNoOrganization
		}
		return &OrganizationContext{ID: id.String()}, nil
	}
	if o.defaultOrgID != "" {
		return &OrganizationContext{ID: o.defaultOrgID}, nil
	}
	return nil, ErrNoOrganization
}

// RequireOrgMiddleware requires organization context, returns 401 if not present
func (o *OrgResolver) RequireOrgMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org, err := o.ExtractOrg(r)
		if err != nil {
			if !errors.Is(err, ErrNoOrganization) && !errors.Is(err, auth.ErrInvalidSession) {
				logger.Error("api: session lookup failed", "error", err)
			}
			httputil.Unauthorized(w, ErrNoOrganization.Error())
			return
		}
		ctx := context.WithValue(r.Context(), OrgContextKey{}, org)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrgFromContext retrieves organization from context
func GetOrgFromContext(ctx context.Context) *OrganizationContext {
	if org, ok := ctx.Value(OrgContextKey{}).(*OrganizationContext); ok {
		return org
	}
	return nil
}

// GetOrgIDFromContext returns the organization ID, or "" when absent.
func GetOrgIDFromContext(ctx context.Context) string {
	if org := GetOrgFromContext(ctx); org != nil {
		return org.ID
	}
	return ""
}
