// Package memory provides an in-memory implementation of all storage interfaces.
// It is suitable for development, testing, and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/zenweasel/fulmine/instrumentation"
	"github.com/zenweasel/fulmine/internal/util"
	"github.com/zenweasel/fulmine/security"
	"github.com/zenweasel/fulmine/storage"
)

const (
	// credentialLogLength is the number of characters to include when logging
	// codes and token prefixes. Enough uniqueness for debugging while keeping
	// logs secure.
	credentialLogLength = 8

	// defaultRevokedTokenRetention is how long revoked refresh tokens are
	// kept, measured from issuance. The records must outlive the rotation so
	// that replay of a rotated token is distinguishable from a token that
	// never existed.
	defaultRevokedTokenRetention = 90 * 24 * time.Hour
)

// grantKey identifies the unique (client, user) pair of an authorization grant.
type grantKey struct {
	clientID string
	userID   string
}

// Store is an in-memory implementation of all storage interfaces.
// It implements GrantStore, AuthCodeStore, RefreshTokenStore, and SessionStore.
type Store struct {
	mu sync.RWMutex

	// Grant storage: by id, plus a pair index enforcing uniqueness
	grants       map[string]*storage.AuthorizationGrant
	grantsByPair map[grantKey]string // (client, user) -> grant id

	// Authorization codes, keyed by the code string
	authCodes map[string]*storage.TemporaryGrant

	// Refresh tokens, keyed by the token string
	refreshTokens map[string]*storage.RefreshToken

	// Sessions (encrypted at rest if encryptor is set), keyed by session key
	sessions map[string]*storage.Session

	// Security
	encryptor *security.Encryptor // session encryption at rest (optional)

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for metrics (lock-free access during metric collection)
	grantsCountAtomic        atomic.Int64
	authCodesCountAtomic     atomic.Int64
	refreshTokensCountAtomic atomic.Int64
	sessionsCountAtomic      atomic.Int64

	// Cleanup
	cleanupInterval       time.Duration
	revokedTokenRetention time.Duration
	stopCleanup           chan struct{}
	logger                *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage interfaces
var (
	_ storage.GrantStore        = (*Store)(nil)
	_ storage.AuthCodeStore     = (*Store)(nil)
	_ storage.RefreshTokenStore = (*Store)(nil)
	_ storage.SessionStore      = (*Store)(nil)
)

// New creates a new in-memory store with default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		grants:                make(map[string]*storage.AuthorizationGrant),
		grantsByPair:          make(map[grantKey]string),
		authCodes:             make(map[string]*storage.TemporaryGrant),
		refreshTokens:         make(map[string]*storage.RefreshToken),
		sessions:              make(map[string]*storage.Session),
		cleanupInterval:       cleanupInterval,
		revokedTokenRetention: defaultRevokedTokenRetention,
		stopCleanup:           make(chan struct{}),
		logger:                slog.Default(),
	}

	// Start background cleanup
	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetEncryptor sets the session encryptor for encryption at rest
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptor = enc
	if enc != nil && enc.IsEnabled() {
		s.logger.Info("Session encryption at rest enabled for storage")
	}
}

// SetRevokedTokenRetention sets how long revoked refresh tokens are retained
// before cleanup. The retention window bounds reuse detection: a rotated
// token replayed after the window reads as not-found rather than revoked.
func (s *Store) SetRevokedTokenRetention(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedTokenRetention = d
	s.logger.Info("Set revoked refresh token retention period",
		"retention", d)
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}

	// Initialize atomic counters with current counts
	s.grantsCountAtomic.Store(int64(len(s.grants)))
	s.authCodesCountAtomic.Store(int64(len(s.authCodes)))
	s.refreshTokensCountAtomic.Store(int64(len(s.refreshTokens)))
	s.sessionsCountAtomic.Store(int64(len(s.sessions)))
	s.mu.Unlock()

	if inst != nil {
		// Register storage size callbacks using atomic counters (lock-free)
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.grantsCountAtomic.Load() },
			func() int64 { return s.authCodesCountAtomic.Load() },
			func() int64 { return s.refreshTokensCountAtomic.Load() },
			func() int64 { return s.sessionsCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop gracefully stops the cleanup goroutine
func (s *Store) Stop() {
	close(s.stopCleanup)
}

// ============================================================
// GrantStore Implementation
// ============================================================

// GetOrCreateGrant stores candidate if no grant exists for its (client, user)
// pair, or returns the existing grant. The lookup-or-insert happens under a
// single write lock so concurrent calls for the same pair converge on one
// record.
func (s *Store) GetOrCreateGrant(ctx context.Context, candidate *storage.AuthorizationGrant) (*storage.AuthorizationGrant, bool, error) {
	ctx, span := s.startStorageSpan(ctx, "get_or_create_grant")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_or_create_grant", err, startTime)
	}()

	if candidate == nil || candidate.ID == "" {
		err = fmt.Errorf("invalid grant")
		return nil, false, err
	}
	if candidate.ClientID == "" || candidate.UserID == "" {
		err = fmt.Errorf("grant requires client and user")
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantKey{clientID: candidate.ClientID, userID: candidate.UserID}
	if id, ok := s.grantsByPair[key]; ok {
		existing := *s.grants[id]
		return &existing, false, nil
	}

	stored := *candidate
	s.grants[stored.ID] = &stored
	s.grantsByPair[key] = stored.ID
	s.grantsCountAtomic.Add(1)

	s.logger.Debug("Created authorization grant",
		"grant_id", stored.ID,
		"client_id", stored.ClientID)

	created := stored
	return &created, true, nil
}

// GetGrant retrieves a grant by id
func (s *Store) GetGrant(ctx context.Context, id string) (*storage.AuthorizationGrant, error) {
	ctx, span := s.startStorageSpan(ctx, "get_grant")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_grant", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[id]
	if !ok {
		err = fmt.Errorf("%w: %s", storage.ErrGrantNotFound, id)
		return nil, err
	}

	// Return a COPY to prevent caller from modifying our stored version
	grantCopy := *grant
	return &grantCopy, nil
}

// FindGrant retrieves a grant by its (client, user) pair
func (s *Store) FindGrant(ctx context.Context, clientID, userID string) (*storage.AuthorizationGrant, error) {
	ctx, span := s.startStorageSpan(ctx, "find_grant")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "find_grant", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.grantsByPair[grantKey{clientID: clientID, userID: userID}]
	if !ok {
		err = storage.ErrGrantNotFound
		return nil, err
	}

	grantCopy := *s.grants[id]
	return &grantCopy, nil
}

// UpdateGrantScope replaces the grant's scope
func (s *Store) UpdateGrantScope(ctx context.Context, id string, scope []string) error {
	ctx, span := s.startStorageSpan(ctx, "update_grant_scope")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "update_grant_scope", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[id]
	if !ok {
		err = fmt.Errorf("%w: %s", storage.ErrGrantNotFound, id)
		return err
	}

	grant.Scope = append([]string(nil), scope...)
	grant.UpdatedAt = time.Now()

	s.logger.Debug("Updated grant scope",
		"grant_id", id,
		"scope_count", len(scope))
	return nil
}

// RevokeGrant marks the grant revoked. Already-issued credentials are not
// cascaded; the grant merely stops minting new ones.
func (s *Store) RevokeGrant(ctx context.Context, id string) error {
	ctx, span := s.startStorageSpan(ctx, "revoke_grant")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "revoke_grant", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[id]
	if !ok {
		err = fmt.Errorf("%w: %s", storage.ErrGrantNotFound, id)
		return err
	}

	grant.Revoked = true
	grant.UpdatedAt = time.Now()

	s.logger.Info("Revoked authorization grant",
		"grant_id", id,
		"client_id", grant.ClientID)
	return nil
}

// ============================================================
// AuthCodeStore Implementation
// ============================================================

// SaveAuthCode persists a pending authorization code
func (s *Store) SaveAuthCode(ctx context.Context, code *storage.TemporaryGrant) error {
	ctx, span := s.startStorageSpan(ctx, "save_auth_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_auth_code", err, startTime)
	}()

	if code == nil || code.Code == "" {
		err = fmt.Errorf("invalid authorization code")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.authCodes[code.Code]; exists {
		err = storage.ErrAuthCodeExists
		return err
	}

	stored := *code
	s.authCodes[stored.Code] = &stored
	s.authCodesCountAtomic.Add(1)

	s.logger.Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(stored.Code, credentialLogLength),
		"grant_id", stored.GrantID)
	return nil
}

// GetAuthCode retrieves a code without modifying it. Expired codes yield
// ErrAuthCodeExpired.
func (s *Store) GetAuthCode(ctx context.Context, code string) (*storage.TemporaryGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrAuthCodeNotFound
	}

	// Clock skew grace period applies
	if security.IsExpired(authCode.ExpiresAt) {
		return nil, storage.ErrAuthCodeExpired
	}

	// Return a COPY to prevent caller from modifying our stored version
	codeCopy := *authCode
	return &codeCopy, nil
}

// ConsumeAuthCode atomically claims an authorization code. The code must be
// unconsumed, unexpired, and match redirectURI, clientID and deployID; the
// consumed flag is flipped under the same write lock, so only ONE concurrent
// request can succeed. All other concurrent requests receive
// ErrAuthCodeConsumed.
//
// IMPORTANT: the record is ONLY returned alongside ErrAuthCodeConsumed
// (reuse) to enable reuse detection by the caller. For other errors
// (not found, expired, mismatch), nil is returned to prevent information
// leakage.
func (s *Store) ConsumeAuthCode(ctx context.Context, code, redirectURI, clientID, deployID string) (*storage.TemporaryGrant, error) {
	ctx, span := s.startStorageSpan(ctx, "consume_auth_code")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "consume_auth_code", err, startTime)
	}()

	s.mu.Lock() // MUST use write lock for atomic check-and-set
	defer s.mu.Unlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		err = storage.ErrAuthCodeNotFound
		return nil, err
	}

	// Clock skew grace period applies
	if security.IsExpired(authCode.ExpiresAt) {
		err = storage.ErrAuthCodeExpired
		return nil, err
	}

	if authCode.ClientID != clientID || authCode.DeployID != deployID {
		err = storage.ErrAuthCodeNotFound
		return nil, err
	}
	if authCode.RedirectURI != redirectURI {
		err = storage.ErrRedirectURIMismatch
		return nil, err
	}

	// ATOMIC check-and-set: only one caller can pass this check
	if authCode.Consumed {
		// Already consumed: return the record so the caller can run reuse
		// handling against the owning grant
		err = storage.ErrAuthCodeConsumed
		codeCopy := *authCode
		return &codeCopy, err
	}

	authCode.Consumed = true
	s.logger.Debug("Consumed authorization code",
		"code_prefix", util.SafeTruncate(code, credentialLogLength))

	codeCopy := *authCode
	return &codeCopy, nil
}

// MarkTokensEmitted atomically claims the emission step of a consumed code.
// Exactly one concurrent caller succeeds; the rest receive ErrTokensEmitted.
func (s *Store) MarkTokensEmitted(ctx context.Context, code string) error {
	ctx, span := s.startStorageSpan(ctx, "mark_tokens_emitted")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "mark_tokens_emitted", err, startTime)
	}()

	s.mu.Lock() // MUST use write lock for atomic check-and-set
	defer s.mu.Unlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		err = storage.ErrAuthCodeNotFound
		return err
	}
	if !authCode.Consumed {
		err = storage.ErrAuthCodeNotConsumed
		return err
	}
	if authCode.TokensEmitted {
		err = storage.ErrTokensEmitted
		return err
	}

	authCode.TokensEmitted = true
	s.logger.Debug("Marked tokens emitted for authorization code",
		"code_prefix", util.SafeTruncate(code, credentialLogLength))
	return nil
}

// DeleteAuthCode removes an authorization code record
func (s *Store) DeleteAuthCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.authCodes[code]; existed {
		delete(s.authCodes, code)
		s.authCodesCountAtomic.Add(-1)
	}

	s.logger.Debug("Deleted authorization code")
	return nil
}

// ============================================================
// RefreshTokenStore Implementation
// ============================================================

// SaveRefreshToken persists a new refresh token
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	ctx, span := s.startStorageSpan(ctx, "save_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "save_refresh_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		err = fmt.Errorf("invalid refresh token")
		return err
	}
	if token.GrantID == "" {
		err = fmt.Errorf("refresh token requires a grant")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refreshTokens[token.Token]; exists {
		err = storage.ErrRefreshTokenExists
		return err
	}

	stored := *token
	s.refreshTokens[stored.Token] = &stored
	s.refreshTokensCountAtomic.Add(1)

	s.logger.Debug("Saved refresh token",
		"token_prefix", util.SafeTruncate(stored.Token, credentialLogLength),
		"grant_id", stored.GrantID)
	return nil
}

// FindRefreshable retrieves the refresh token matching token and deployID.
// A matching but revoked token yields ErrRefreshTokenRevoked so callers can
// distinguish replay of a rotated token from a token that never existed.
func (s *Store) FindRefreshable(ctx context.Context, token, deployID string) (*storage.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.refreshTokens[token]
	if !ok || rt.DeployID != deployID {
		return nil, storage.ErrRefreshTokenNotFound
	}
	if rt.Revoked {
		return nil, storage.ErrRefreshTokenRevoked
	}

	tokenCopy := *rt
	return &tokenCopy, nil
}

// ClaimRefreshToken atomically revokes the matching unrevoked refresh token
// and returns it. This is the synchronization point of the rotation chain:
// only ONE concurrent request can succeed, the rest receive
// ErrRefreshTokenRevoked.
func (s *Store) ClaimRefreshToken(ctx context.Context, token, deployID string) (*storage.RefreshToken, error) {
	ctx, span := s.startStorageSpan(ctx, "claim_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "claim_refresh_token", err, startTime)
	}()

	s.mu.Lock() // MUST use write lock for atomic check-and-set
	defer s.mu.Unlock()

	rt, ok := s.refreshTokens[token]
	if !ok || rt.DeployID != deployID {
		err = storage.ErrRefreshTokenNotFound
		return nil, err
	}

	// ATOMIC check-and-set: only one caller can pass this check
	if rt.Revoked {
		err = storage.ErrRefreshTokenRevoked
		return nil, err
	}

	rt.Revoked = true
	s.logger.Debug("Claimed refresh token for rotation",
		"token_prefix", util.SafeTruncate(token, credentialLogLength),
		"grant_id", rt.GrantID)

	tokenCopy := *rt
	return &tokenCopy, nil
}

// ============================================================
// SessionStore Implementation
// ============================================================

// CreateSession stores a session under key with fail-if-exists semantics.
// If any session already exists under key the call returns ErrSessionExists
// and leaves the stored session untouched.
func (s *Store) CreateSession(ctx context.Context, key string, session *storage.Session) error {
	ctx, span := s.startStorageSpan(ctx, "create_session")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "create_session", err, startTime)
	}()

	if key == "" {
		err = fmt.Errorf("session key cannot be empty")
		return err
	}
	if session == nil {
		err = fmt.Errorf("session cannot be nil")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[key]; exists {
		err = storage.ErrSessionExists
		return err
	}

	stored := *session
	if s.encryptor != nil && s.encryptor.IsEnabled() {
		if err = s.encryptSessionLocked(&stored); err != nil {
			return err
		}
		s.logger.Debug("Created encrypted session",
			"key_prefix", util.SafeTruncate(key, credentialLogLength))
	} else {
		s.logger.Debug("Created session",
			"key_prefix", util.SafeTruncate(key, credentialLogLength))
	}

	s.sessions[key] = &stored
	s.sessionsCountAtomic.Add(1)
	return nil
}

// GetSession retrieves a live session and decrypts it if necessary.
// Expired sessions read as not found.
func (s *Store) GetSession(ctx context.Context, key string) (*storage.Session, error) {
	ctx, span := s.startStorageSpan(ctx, "get_session")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_session", err, startTime)
	}()

	s.mu.RLock()
	encryptor := s.encryptor
	session, ok := s.sessions[key]
	var sessionCopy storage.Session
	if ok {
		sessionCopy = *session
	}
	s.mu.RUnlock()

	if !ok {
		err = storage.ErrSessionNotFound
		return nil, err
	}

	// Clock skew grace period applies
	if security.IsExpired(sessionCopy.ExpiresAt) {
		err = fmt.Errorf("%w: session expired", storage.ErrSessionNotFound)
		return nil, err
	}

	if encryptor != nil && encryptor.IsEnabled() {
		if err = decryptSession(&sessionCopy, encryptor); err != nil {
			return nil, err
		}
	}

	return &sessionCopy, nil
}

// ValidateSessionSecret validates a session's secret half using bcrypt.
// Uses constant-time operations to prevent timing attacks.
func (s *Store) ValidateSessionSecret(ctx context.Context, key, secret string) (*storage.Session, error) {
	// Pre-computed dummy hash for non-existent sessions (bcrypt hash of "test").
	// Always performing a bcrypt comparison hides whether the session exists.
	dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

	session, err := s.GetSession(ctx, key)

	hashToCompare := dummyHash
	if err == nil && session.SecretHash != "" {
		hashToCompare = session.SecretHash
	}

	// ALWAYS perform the bcrypt comparison (constant-time by design)
	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(secret))

	if err != nil {
		return nil, storage.ErrSessionNotFound
	}
	if session.Revoked {
		return nil, storage.ErrSessionNotFound
	}
	if bcryptErr != nil {
		return nil, storage.ErrSessionNotFound
	}

	return session, nil
}

// DeleteSession removes a session
func (s *Store) DeleteSession(ctx context.Context, key string) error {
	ctx, span := s.startStorageSpan(ctx, "delete_session")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "delete_session", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.sessions[key]; existed {
		delete(s.sessions, key)
		s.sessionsCountAtomic.Add(-1)
	}

	s.logger.Debug("Deleted session",
		"key_prefix", util.SafeTruncate(key, credentialLogLength))
	return nil
}

// SetSessionExpiry updates a session's expiry
func (s *Store) SetSessionExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[key]
	if !ok {
		return storage.ErrSessionNotFound
	}

	session.ExpiresAt = expiresAt
	return nil
}

// encryptSessionLocked encrypts the identity fields of a session in place.
// Caller must hold the write lock.
// SECURITY: UserID and AuthBackend identify a person and are treated as PII.
func (s *Store) encryptSessionLocked(session *storage.Session) error {
	if session.UserID != "" {
		enc, err := s.encryptor.Encrypt(session.UserID)
		if err != nil {
			return fmt.Errorf("failed to encrypt session user: %w", err)
		}
		session.UserID = enc
	}
	if session.AuthBackend != "" {
		enc, err := s.encryptor.Encrypt(session.AuthBackend)
		if err != nil {
			return fmt.Errorf("failed to encrypt session backend: %w", err)
		}
		session.AuthBackend = enc
	}
	return nil
}

// decryptSession decrypts the identity fields of a session copy in place
func decryptSession(session *storage.Session, encryptor *security.Encryptor) error {
	if session.UserID != "" {
		dec, err := encryptor.Decrypt(session.UserID)
		if err != nil {
			return fmt.Errorf("failed to decrypt session user: %w", err)
		}
		session.UserID = dec
	}
	if session.AuthBackend != "" {
		dec, err := encryptor.Decrypt(session.AuthBackend)
		if err != nil {
			return fmt.Errorf("failed to decrypt session backend: %w", err)
		}
		session.AuthBackend = dec
	}
	return nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0

	// Expired authorization codes (with clock skew grace period).
	// Consumed codes stay until expiry so reuse within the window is still
	// detectable.
	for code, authCode := range s.authCodes {
		if security.IsExpired(authCode.ExpiresAt) {
			delete(s.authCodes, code)
			s.authCodesCountAtomic.Add(-1)
			cleaned++
		}
	}

	// Expired sessions (with clock skew grace period)
	for key, session := range s.sessions {
		if security.IsExpired(session.ExpiresAt) {
			delete(s.sessions, key)
			s.sessionsCountAtomic.Add(-1)
			cleaned++
		}
	}

	// Revoked refresh tokens past the retention window. The records are kept
	// for a while after rotation so that replay reads as revoked, not
	// not-found.
	retention := s.revokedTokenRetention
	if retention <= 0 {
		retention = defaultRevokedTokenRetention
	}
	revokedCleanupThreshold := time.Now().Add(-retention)
	for token, rt := range s.refreshTokens {
		if rt.Revoked && rt.CreatedAt.Before(revokedCleanupThreshold) {
			delete(s.refreshTokens, token)
			s.refreshTokensCountAtomic.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired entries", "count", cleaned)
	}
}

// ============================================================
// Instrumentation helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation.
// Returns a context with the span attached and the span itself.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		if span != nil {
			span.SetStatus(codes.Ok, "")
		}
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
