package server

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/zenweasel/fulmine"
	"github.com/zenweasel/fulmine/storage"
)

// Authorization response types
const (
	ResponseTypeCode  = "code"  // authorization code flow
	ResponseTypeToken = "token" // implicit flow
)

// AuthorizationRequest is a fully constructed incoming authorization
// request. Callers build the value, run ValidateAuthorizationRequest once,
// and only then drive a redirect flow with it.
type AuthorizationRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        []string
	State        string
	DeployID     string
}

// ValidateAuthorizationRequest checks the protocol parameters of req and
// returns every problem found, not just the first, so a consent UI can
// display them all at once. An empty slice means the request is valid.
// The function is idempotent and mutates nothing.
func (s *Server) ValidateAuthorizationRequest(req *AuthorizationRequest) []error {
	var errs []error

	if req.ResponseType != ResponseTypeCode && req.ResponseType != ResponseTypeToken {
		errs = append(errs, fulmine.ErrInvalidRequest(
			fmt.Sprintf("response_type must be %q or %q", ResponseTypeCode, ResponseTypeToken)))
	}

	if req.ClientID == "" {
		// Without a client there is no way to judge redirect URI ownership,
		// so both parameters are reported invalid
		errs = append(errs, fulmine.ErrInvalidClient("client_id is required"))
		errs = append(errs, fulmine.ErrInvalidRedirectURI("redirect_uri cannot be validated without client_id"))
	} else {
		if len(req.ClientID) > s.Config.Tokens.ClientIDLength {
			errs = append(errs, fulmine.ErrInvalidClient("client_id too long"))
		}
		if !s.Config.RedirectURIPolicy(req.ClientID, req.RedirectURI) {
			errs = append(errs, fulmine.ErrInvalidRedirectURI("redirect_uri not authorized for client"))
		}
	}

	if _, err := fulmine.ParseScope(req.Scope); err != nil {
		errs = append(errs, fulmine.ErrInvalidScope(err.Error()))
	}
	if len(fulmine.ScopeCodec{}.Encode(req.Scope)) > s.Config.Tokens.ScopeLength {
		errs = append(errs, fulmine.ErrInvalidScope("scope too long"))
	}

	return errs
}

// Grant resolves the standing grant for a validated request and the
// authenticated identity, creating one on first authorization.
func (s *Server) Grant(ctx context.Context, req *AuthorizationRequest, userID, authBackend string) (*storage.AuthorizationGrant, error) {
	if errs := s.ValidateAuthorizationRequest(req); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	grant, _, err := s.GetOrCreateGrant(ctx, req.ClientID, userID, authBackend, req.Scope)
	return grant, err
}

// CodeRedirect runs the authorization-code flow for a validated request:
// it issues a code and returns the redirect URI with code and state merged
// into the existing query string. Pre-existing query parameters are
// preserved.
func (s *Server) CodeRedirect(ctx context.Context, req *AuthorizationRequest, grant *storage.AuthorizationGrant) (string, error) {
	code, err := s.IssueAuthCode(ctx, grant, req.RedirectURI, req.State, req.DeployID)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", fulmine.ErrInvalidRedirectURI(err.Error())
	}

	q := u.Query()
	q.Set("code", code.Code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// TokenRedirect runs the implicit flow for a validated request: it mints an
// access token directly from the grant and returns the redirect URI with the
// token response in the fragment component. The query string is left
// untouched so the token never reaches server logs via the query component.
func (s *Server) TokenRedirect(ctx context.Context, req *AuthorizationRequest, grant *storage.AuthorizationGrant, ttlSeconds int64) (string, error) {
	token, scope, err := s.MintAccessToken(ctx, grant, ttlSeconds, req.DeployID, req.Scope)
	if err != nil {
		return "", err
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(grant.UserID, grant.ClientID, req.DeployID, scope)
	}
	if m := s.metrics(); m != nil {
		m.RecordTokenIssued(ctx, grant.ClientID, false)
	}

	u, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", fulmine.ErrInvalidRedirectURI(err.Error())
	}

	frag := url.Values{}
	frag.Set("access_token", token.AccessToken)
	frag.Set("token_type", token.TokenType)
	frag.Set("expires_in", fmt.Sprintf("%d", ttlSeconds))
	frag.Set("scope", fulmine.ScopeCodec{}.Encode(scope))
	if req.State != "" {
		frag.Set("state", req.State)
	}

	// The fragment is appended verbatim: Values.Encode already produces the
	// escaped form, and URL.String would escape it a second time.
	u.Fragment = ""
	return u.String() + "#" + frag.Encode(), nil
}
