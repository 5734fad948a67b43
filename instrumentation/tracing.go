package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys.
//
// SECURITY WARNING: never record actual credential values (authorization
// codes, bearer tokens, refresh tokens, session secrets) in traces or
// metrics. Only record metadata such as client IDs, scope strings, result
// labels and durations. Traces are often persisted for extended periods,
// accessible to wider audiences than production systems, and replicated
// across monitoring infrastructure.
const (
	// Grant and flow attributes - SAFE to use for metadata only
	AttrClientID     = "auth.client_id"     // Client identifier (non-secret)
	AttrUserID       = "auth.user_id"       // User identifier (non-secret)
	AttrGrantID      = "auth.grant_id"      // Grant identifier (non-secret)
	AttrScope        = "auth.scope"         // Scope string
	AttrRedirectURI  = "auth.redirect_uri"  // Redirect URI
	AttrResponseType = "auth.response_type" // Authorization response type
	AttrCodeReuse    = "auth.code.reuse"    // Whether code reuse was detected (boolean)
	AttrTokenReuse   = "auth.token.reuse"   //nolint:gosec // Whether refresh reuse was detected (boolean)
	AttrTokenRotated = "auth.token.rotated" //nolint:gosec // Whether the refresh token was rotated (boolean)
	AttrExpiresIn    = "auth.expires_in"    // Token expiry duration in seconds
	AttrError        = "auth.error"         // Error code

	// Storage attributes
	AttrStorageOperation = "storage.operation"
	AttrStorageResult    = "storage.result"
	AttrStorageType      = "storage.type"

	// Security attributes
	AttrAuditEventType = "security.audit.event_type"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddGrantAttributes adds common grant attributes to a span (nil-safe)
func AddGrantAttributes(span trace.Span, clientID, userID, scope string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if userID != "" {
		SetSpanAttributes(span, attribute.String(AttrUserID, userID))
	}
	if scope != "" {
		SetSpanAttributes(span, attribute.String(AttrScope, scope))
	}
}

// AddStorageAttributes adds storage operation attributes to a span (nil-safe)
func AddStorageAttributes(span trace.Span, operation, storageType string) {
	SetSpanAttributes(span,
		attribute.String(AttrStorageOperation, operation),
		attribute.String(AttrStorageType, storageType),
	)
}
