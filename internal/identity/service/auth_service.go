package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fitstack/auth/internal/audit"
	identitydomain "fitstack/auth/internal/identity/domain"
	permdomain "fitstack/auth/internal/permission/domain"
	"fitstack/auth/internal/ratelimit"
	"fitstack/auth/internal/resettoken"
	"fitstack/auth/internal/security"
	"fitstack/auth/internal/session"
	sessiondomain "fitstack/auth/internal/session/domain"
	"fitstack/auth/internal/token"
	tokendomain "fitstack/auth/internal/token/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP status
// codes. Credential and token failures are deliberately coarse: callers never
// learn whether an email exists, a password was wrong or an account is
// disabled.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrForbidden          = errors.New("forbidden")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrWeakPassword       = errors.New("password does not meet requirements")
)

// RateLimitedError carries the limiter result so the transport can emit
// Retry-After. errors.Is(err, ErrTooManyRequests) holds for it.
type RateLimitedError struct {
	Result ratelimit.Result
}

func (e *RateLimitedError) Error() string { return ErrTooManyRequests.Error() }
func (e *RateLimitedError) Unwrap() error { return ErrTooManyRequests }

// AuthResult holds the outcome of Login or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	IdentityID   string
	SessionID    string
}

// UserInfo is the authenticated caller's view of itself.
type UserInfo struct {
	ID          string
	Email       string
	Active      bool
	LastLoginAt *time.Time
	Roles       []string
	Permissions []string
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByEmail(ctx context.Context, email string) (*identitydomain.Identity, error)
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
}

// Sessions is the session store surface needed by the auth service.
type Sessions interface {
	Create(ctx context.Context, identityID string, meta session.Metadata) (*sessiondomain.Session, error)
	GetLive(ctx context.Context, id string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, id string) error
	LinkRefreshToken(ctx context.Context, sessionID, refreshTokenID string) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAll(ctx context.Context, identityID string) error
}

// RefreshTokens is the refresh-token store surface needed by the auth service.
type RefreshTokens interface {
	Issue(ctx context.Context, identityID, sessionID string) (string, *tokendomain.RefreshToken, error)
	Consume(ctx context.Context, raw string) (*tokendomain.RefreshToken, error)
	RevokeForSession(ctx context.Context, sessionID string) error
	RevokeAllForIdentity(ctx context.Context, identityID string) error
}

// ResetTokens is the password-reset token surface needed by the auth service.
type ResetTokens interface {
	Issue(ctx context.Context, identityID string) (string, error)
	Consume(ctx context.Context, raw string) (string, error)
}

// Permissions resolves roles, grants and access decisions.
type Permissions interface {
	GetPermissions(ctx context.Context, identityID string) (*permdomain.PermissionSet, error)
	CheckAccess(ctx context.Context, ac permdomain.AccessContext) (bool, error)
	Invalidate(identityID string)
}

// Limiter is the rate-limit surface needed by the auth service.
type Limiter interface {
	Check(ctx context.Context, key string, cfg ratelimit.Config) (ratelimit.Result, error)
}

// ResetDeliverer hands a freshly issued reset token to the delivery channel
// (mail, SMS). The default discards the token.
type ResetDeliverer interface {
	DeliverResetToken(ctx context.Context, email, rawToken string) error
}

type nopDeliverer struct{}

func (nopDeliverer) DeliverResetToken(context.Context, string, string) error { return nil }

// FailureCounter observes failed login attempts. The default implementation
// only logs; a lockout policy can be plugged in without touching Login.
type FailureCounter interface {
	RecordFailure(ctx context.Context, email, ip string)
}

// LoginCounter observes successful logins, typically for metrics.
type LoginCounter interface {
	RecordLogin(ctx context.Context)
}

type nopLoginCounter struct{}

func (nopLoginCounter) RecordLogin(context.Context) {}

type logFailureCounter struct {
	logger *zap.Logger
}

func (c *logFailureCounter) RecordFailure(ctx context.Context, email, ip string) {
	c.logger.Info("login failure", zap.String("email", email), zap.String("ip", ip))
}

// AuthService is the authentication facade: it owns login, token rotation,
// logout, password reset and permission queries, and normalizes every
// internal failure mode into the coarse sentinel errors above.
type AuthService struct {
	identities IdentityRepo
	sessions   Sessions
	refresh    RefreshTokens
	resets     ResetTokens
	perms      Permissions
	limiter    Limiter
	hasher     security.PasswordHasher
	tokens     *security.TokenProvider
	auditor    audit.AuditLogger
	deliverer  ResetDeliverer
	failures   FailureCounter
	logins     LoginCounter
	logger     *zap.Logger

	authLimit  ratelimit.Config
	resetLimit ratelimit.Config
	depTimeout time.Duration
	nowF       func() time.Time
}

// Options carries the optional collaborators of NewAuthService.
type Options struct {
	Auditor   audit.AuditLogger
	Deliverer ResetDeliverer
	Failures  FailureCounter
	Logins    LoginCounter
	Logger    *zap.Logger
}

// NewAuthService returns an AuthService with the given dependencies.
// depTimeout bounds every dependency call made on behalf of one operation.
func NewAuthService(
	identities IdentityRepo,
	sessions Sessions,
	refresh RefreshTokens,
	resets ResetTokens,
	perms Permissions,
	limiter Limiter,
	hasher security.PasswordHasher,
	tokens *security.TokenProvider,
	authLimit, resetLimit ratelimit.Config,
	depTimeout time.Duration,
	opts Options,
) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	auditor := opts.Auditor
	if auditor == nil {
		auditor = audit.Nop{}
	}
	deliverer := opts.Deliverer
	if deliverer == nil {
		deliverer = nopDeliverer{}
	}
	failures := opts.Failures
	if failures == nil {
		failures = &logFailureCounter{logger: logger}
	}
	logins := opts.Logins
	if logins == nil {
		logins = nopLoginCounter{}
	}
	return &AuthService{
		identities: identities,
		sessions:   sessions,
		refresh:    refresh,
		resets:     resets,
		perms:      perms,
		limiter:    limiter,
		hasher:     hasher,
		tokens:     tokens,
		auditor:    auditor,
		deliverer:  deliverer,
		failures:   failures,
		logins:     logins,
		logger:     logger,
		authLimit:  authLimit,
		resetLimit: resetLimit,
		depTimeout: depTimeout,
		nowF:       time.Now,
	}
}

// Login authenticates with email/password, opens a session and returns a
// token pair. Unknown email, wrong password and disabled account all yield
// ErrInvalidCredentials; the unknown-email path still runs a bcrypt compare
// so its latency matches the wrong-password path.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ip string) (*AuthResult, error) {
	res, err := s.limiter.Check(ctx, ip, s.authLimit)
	if err != nil {
		return nil, s.infra(err)
	}
	if !res.Allowed {
		return nil, &RateLimitedError{Result: res}
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.infra(err)
	}
	if ident == nil {
		// Constant-work path for unknown emails.
		_ = s.hasher.Compare(security.DummyCompareHash, []byte(password))
		s.failures.RecordFailure(ctx, email, ip)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		s.failures.RecordFailure(ctx, email, ip)
		s.auditor.LogEvent(ctx, "", ident.ID, "login_failure", "auth", "")
		return nil, ErrInvalidCredentials
	}
	if !ident.Active {
		s.auditor.LogEvent(ctx, "", ident.ID, "login_failure", "auth", `{"reason":"inactive"}`)
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, ident.ID, session.Metadata{UserAgent: userAgent, IPAddress: ip})
	if err != nil {
		return nil, s.infra(err)
	}
	rawRefresh, rec, err := s.refresh.Issue(ctx, ident.ID, sess.ID)
	if err != nil {
		return nil, s.infra(err)
	}
	if err := s.sessions.LinkRefreshToken(ctx, sess.ID, rec.ID); err != nil {
		return nil, s.infra(err)
	}
	accessToken, expiresAt, err := s.issueAccess(ctx, ident, sess.ID)
	if err != nil {
		return nil, s.infra(err)
	}

	if err := s.identities.UpdateLastLogin(ctx, ident.ID, s.nowF().UTC()); err != nil {
		s.logger.Warn("last-login update failed", zap.String("identity_id", ident.ID), zap.Error(err))
	}
	s.auditor.LogEvent(ctx, "", ident.ID, "login", "auth", "")
	s.logins.RecordLogin(ctx)

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		ExpiresAt:    expiresAt,
		IdentityID:   ident.ID,
		SessionID:    sess.ID,
	}, nil
}

// Refresh redeems the refresh token and rotates it: the old token is revoked
// atomically, a new one is bound to the same session, and a fresh access
// token is minted. Presenting an already rotated token yields ErrTokenRevoked.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (*AuthResult, error) {
	if rawRefresh == "" {
		return nil, ErrTokenMalformed
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	rec, err := s.refresh.Consume(ctx, rawRefresh)
	if err != nil {
		return nil, s.tokenErr(err)
	}
	sess, err := s.sessions.GetLive(ctx, rec.SessionID)
	if err != nil {
		return nil, s.infra(err)
	}
	if sess == nil {
		return nil, ErrTokenRevoked
	}
	ident, err := s.identities.GetByID(ctx, rec.IdentityID)
	if err != nil {
		return nil, s.infra(err)
	}
	if ident == nil || !ident.Active {
		return nil, ErrTokenRevoked
	}

	newRefresh, newRec, err := s.refresh.Issue(ctx, ident.ID, sess.ID)
	if err != nil {
		return nil, s.infra(err)
	}
	if err := s.sessions.LinkRefreshToken(ctx, sess.ID, newRec.ID); err != nil {
		return nil, s.infra(err)
	}
	if err := s.sessions.Touch(ctx, sess.ID); err != nil {
		s.logger.Warn("session touch failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	accessToken, expiresAt, err := s.issueAccess(ctx, ident, sess.ID)
	if err != nil {
		return nil, s.infra(err)
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
		IdentityID:   ident.ID,
		SessionID:    sess.ID,
	}, nil
}

// Logout ends the session and revokes its refresh tokens. Logging out an
// already ended session is a no-op.
func (s *AuthService) Logout(ctx context.Context, identityID, sessionID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.sessions.Deactivate(ctx, sessionID); err != nil {
		return s.infra(err)
	}
	if err := s.refresh.RevokeForSession(ctx, sessionID); err != nil {
		return s.infra(err)
	}
	s.auditor.LogEvent(ctx, "", identityID, "logout", "auth", "")
	return nil
}

// LogoutAll ends every session of the identity and revokes all its refresh
// tokens.
func (s *AuthService) LogoutAll(ctx context.Context, identityID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.sessions.DeactivateAll(ctx, identityID); err != nil {
		return s.infra(err)
	}
	if err := s.refresh.RevokeAllForIdentity(ctx, identityID); err != nil {
		return s.infra(err)
	}
	s.auditor.LogEvent(ctx, "", identityID, "logout_all", "auth", "")
	return nil
}

// CurrentUser returns the identity together with its resolved roles and
// permissions.
func (s *AuthService) CurrentUser(ctx context.Context, identityID string) (*UserInfo, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ident, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, s.infra(err)
	}
	if ident == nil {
		return nil, ErrInvalidCredentials
	}
	set, err := s.perms.GetPermissions(ctx, identityID)
	if err != nil {
		return nil, s.infra(err)
	}
	return &UserInfo{
		ID:          ident.ID,
		Email:       ident.Email,
		Active:      ident.Active,
		LastLoginAt: ident.LastLoginAt,
		Roles:       set.Roles,
		Permissions: grantStrings(set.Grants),
	}, nil
}

// CheckPermission answers one authorization question for the identity.
func (s *AuthService) CheckPermission(ctx context.Context, identityID, resource, action, scopeID string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	allowed, err := s.perms.CheckAccess(ctx, permdomain.AccessContext{
		SubjectID: identityID,
		Resource:  resource,
		Action:    action,
		ScopeID:   scopeID,
	})
	if err != nil {
		return false, s.infra(err)
	}
	return allowed, nil
}

// RequestPasswordReset issues a reset token for the account behind the email,
// if one exists, and hands it to the deliverer. The outcome is identical
// either way so the endpoint cannot be used to probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	res, err := s.limiter.Check(ctx, email, s.resetLimit)
	if err != nil {
		return s.infra(err)
	}
	if !res.Allowed {
		return &RateLimitedError{Result: res}
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return s.infra(err)
	}
	if ident == nil || !ident.Active {
		return nil
	}
	raw, err := s.resets.Issue(ctx, ident.ID)
	if err != nil {
		return s.infra(err)
	}
	if err := s.deliverer.DeliverResetToken(ctx, ident.Email, raw); err != nil {
		s.logger.Warn("reset token delivery failed", zap.String("identity_id", ident.ID), zap.Error(err))
	}
	s.auditor.LogEvent(ctx, "", ident.ID, "password_reset_requested", "auth", "")
	return nil
}

// ResetPassword redeems the reset token, replaces the password and revokes
// every session and refresh token of the identity.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	identityID, err := s.resets.Consume(ctx, rawToken)
	if err != nil {
		return s.tokenErr(err)
	}
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return s.infra(err)
	}
	if err := s.identities.UpdatePassword(ctx, identityID, hash, s.nowF().UTC()); err != nil {
		return s.infra(err)
	}
	if err := s.sessions.DeactivateAll(ctx, identityID); err != nil {
		return s.infra(err)
	}
	if err := s.refresh.RevokeAllForIdentity(ctx, identityID); err != nil {
		return s.infra(err)
	}
	s.perms.Invalidate(identityID)
	s.auditor.LogEvent(ctx, "", identityID, "password_reset", "auth", "")
	return nil
}

func (s *AuthService) issueAccess(ctx context.Context, ident *identitydomain.Identity, sessionID string) (string, time.Time, error) {
	set, err := s.perms.GetPermissions(ctx, ident.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.tokens.IssueAccess(sessionID, ident.ID, ident.Email, set.Roles, grantStrings(set.Grants))
}

// bound caps the time any one operation may spend on dependencies. A zero
// timeout disables the cap.
func (s *AuthService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.depTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.depTimeout)
}

// infra separates dependency outages from auth failures: a timed-out or
// failing database call must surface as 503, never as 401 or 500. Every
// error reaching here came from a store, repository or limiter call.
func (s *AuthService) infra(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("dependency timeout", zap.Error(err))
	} else {
		s.logger.Error("dependency failure", zap.Error(err))
	}
	return ErrServiceUnavailable
}

// tokenErr maps store-level token failures to the coarse facade sentinels,
// logging the specific cause.
func (s *AuthService) tokenErr(err error) error {
	switch {
	case errors.Is(err, token.ErrRevoked):
		s.logger.Warn("revoked refresh token presented")
		return ErrTokenRevoked
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrNotFound), errors.Is(err, resettoken.ErrInvalid):
		return ErrTokenMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrServiceUnavailable
	default:
		return s.infra(err)
	}
}

func grantStrings(grants []permdomain.Grant) []string {
	out := make([]string, len(grants))
	for i, g := range grants {
		out[i] = g.String()
	}
	return out
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("%w: must be at least 12 characters", ErrWeakPassword)
	}
	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}
	if !hasUpper || !hasLower || !hasNumber {
		return fmt.Errorf("%w: must mix upper and lower case letters and numbers", ErrWeakPassword)
	}
	return nil
}
