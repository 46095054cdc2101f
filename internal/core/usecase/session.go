package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/ports"
)

type SessionManagerOptions struct {
	// Consent is nil when client credentials are missing.
	Consent  ports.ConsentProvider
	Verifier ports.TokenVerifier
	Revoker  ports.TokenRevoker
	Store    ports.CredentialStore
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// SessionManager owns the single provider credential of the process.
type SessionManager struct {
	consent  ports.ConsentProvider
	verifier ports.TokenVerifier
	revoker  ports.TokenRevoker
	store    ports.CredentialStore
	notifier ports.Notifier
	logger   *slog.Logger
	now      func() time.Time

	grantMu sync.Mutex

	mu      sync.Mutex
	state   domain.SessionState
	session *domain.AuthSession
}

func NewSessionManager(opts SessionManagerOptions) *SessionManager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SessionManager{
		consent:  opts.Consent,
		verifier: opts.Verifier,
		revoker:  opts.Revoker,
		store:    opts.Store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		state:    domain.SessionNone,
	}
}

func (m *SessionManager) Configured() bool {
	return m.consent != nil
}

// Initialize restores a credential saved earlier in this login session and
// checks it with the provider before trusting it.
func (m *SessionManager) Initialize(ctx context.Context) (domain.SessionStatus, error) {
	if !m.Configured() {
		m.logger.Warn("google_integration_not_configured")
		m.notify(ctx, "Google API credentials are not configured. Showing sample data.", domain.SeverityWarning, "")
	}

	cred, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNoSession):
		return m.Status(), nil
	case err != nil:
		m.logger.Warn("session_restore_failed", "error", err)
		return m.Status(), nil
	case cred.Empty():
		return m.Status(), nil
	}

	m.mu.Lock()
	m.state = domain.SessionAuthenticated
	m.session = &domain.AuthSession{
		Credential: cred,
		Validity:   domain.ValidityUnknown,
		Source:     domain.SourceRestored,
	}
	m.mu.Unlock()
	m.logger.Info("session_restored")

	return m.Validate(ctx)
}

// RequestInteractiveGrant runs the consent flow and waits for its outcome.
func (m *SessionManager) RequestInteractiveGrant(ctx context.Context) (domain.SessionStatus, error) {
	if !m.Configured() {
		return m.Status(), domain.WrapError(domain.ErrNotConfigured, "request grant", fmt.Errorf("client id is missing"))
	}
	if !m.grantMu.TryLock() {
		return m.Status(), domain.WrapError(domain.ErrInvalidInput, "request grant", fmt.Errorf("sign-in already in progress"))
	}
	defer m.grantMu.Unlock()

	m.mu.Lock()
	previous := m.session
	m.state = domain.SessionAuthenticating
	m.mu.Unlock()

	cred, err := m.consent.RequestGrant(ctx)
	if err == nil && cred.Empty() {
		err = fmt.Errorf("provider returned an empty access token")
	}
	if err != nil {
		m.mu.Lock()
		if previous != nil {
			m.state = domain.SessionAuthenticated
		} else {
			m.state = domain.SessionNone
		}
		m.mu.Unlock()

		m.logger.Warn("interactive_grant_failed", "error", err)
		m.notify(ctx, "Google sign-in failed. Sample data stays available.", domain.SeverityError, domain.ActionLogin)
		if domain.IsKind(err, domain.ErrConsentDenied) {
			return m.Status(), err
		}
		return m.Status(), domain.WrapError(domain.ErrConsentDenied, "request grant", err)
	}

	if cred.ObtainedAt.IsZero() {
		cred.ObtainedAt = m.now().UTC()
	}
	if err := m.store.Save(ctx, cred); err != nil {
		m.logger.Warn("session_store_save_failed", "error", err)
	}

	m.mu.Lock()
	m.state = domain.SessionAuthenticated
	m.session = &domain.AuthSession{
		Credential: cred,
		Validity:   domain.ValidityValid,
		Source:     domain.SourceInteractive,
	}
	m.mu.Unlock()

	m.logger.Info("interactive_grant_succeeded")
	m.notify(ctx, "Connected to Google APIs.", domain.SeveritySuccess, "")
	return m.Status(), nil
}

// Validate asks the provider whether the current credential is still live. A
// negative or failed answer ends the session.
func (m *SessionManager) Validate(ctx context.Context) (domain.SessionStatus, error) {
	token, ok := m.AccessToken()
	if !ok {
		return m.Status(), nil
	}

	live, err := m.verifier.Verify(ctx, token)
	if err == nil && live {
		m.mu.Lock()
		if m.session != nil && m.session.Credential.AccessToken == token {
			m.session.Validity = domain.ValidityValid
		}
		m.mu.Unlock()
		return m.Status(), nil
	}

	if err != nil {
		m.logger.Warn("session_validation_failed", "error", err)
	} else {
		m.logger.Info("session_no_longer_live")
	}
	if m.expire(ctx, token) {
		m.notify(ctx, "Your Google session has expired. Sign in again to load live data.", domain.SeverityWarning, domain.ActionLogin)
	}
	return m.Status(), nil
}

// Revoke signs out. The provider is told on a best-effort basis; local state is
// cleared regardless.
func (m *SessionManager) Revoke(ctx context.Context) error {
	m.mu.Lock()
	var token string
	if m.session != nil {
		token = m.session.Credential.AccessToken
	}
	m.session = nil
	m.state = domain.SessionRevoked
	m.mu.Unlock()

	if token != "" && m.revoker != nil {
		if err := m.revoker.Revoke(ctx, token); err != nil {
			m.logger.Warn("provider_revoke_failed", "error", err)
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("session_store_clear_failed", "error", err)
	}

	m.logger.Info("session_revoked")
	m.notify(ctx, "Signed out of Google.", domain.SeverityInfo, "")
	return nil
}

// HandleUnauthorized reacts to a 401 from any data source. Several sources
// failing in the same cycle produce a single prompt.
func (m *SessionManager) HandleUnauthorized(ctx context.Context, source domain.SourceName) {
	token, ok := m.AccessToken()
	if !ok {
		return
	}
	if m.expire(ctx, token) {
		m.logger.Warn("session_expired_by_source", "source", string(source))
		m.notify(ctx, "Google rejected the saved sign-in. Please sign in again.", domain.SeverityWarning, domain.ActionLogin)
	}
}

// Status reports the session. A credential found past its recorded expiry is
// ended first so callers never see it as authenticated.
func (m *SessionManager) Status() domain.SessionStatus {
	m.expireLapsed(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()

	status := domain.SessionStatus{State: m.state, Configured: m.Configured()}
	if m.session != nil {
		status.Validity = m.session.Validity
		status.Source = m.session.Source
		if !m.session.Credential.Expiry.IsZero() {
			expiry := m.session.Credential.Expiry
			status.Expiry = &expiry
		}
	}
	return status
}

// AccessToken returns the bearer token while the session is authenticated and
// not past its recorded expiry. A lapsed session is ended on the way out.
func (m *SessionManager) AccessToken() (string, bool) {
	m.expireLapsed(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.SessionAuthenticated || m.session == nil {
		return "", false
	}
	expiry := m.session.Credential.Expiry
	if !expiry.IsZero() && !m.now().Before(expiry) {
		return "", false
	}
	return m.session.Credential.AccessToken, true
}

// expireLapsed ends an authenticated session whose recorded expiry has passed
// and prompts for a new sign-in.
func (m *SessionManager) expireLapsed(ctx context.Context) {
	m.mu.Lock()
	var token string
	if m.state == domain.SessionAuthenticated && m.session != nil {
		expiry := m.session.Credential.Expiry
		if !expiry.IsZero() && !m.now().Before(expiry) {
			token = m.session.Credential.AccessToken
		}
	}
	m.mu.Unlock()

	if token == "" || !m.expire(ctx, token) {
		return
	}
	m.logger.Info("session_expiry_reached")
	m.notify(ctx, "Your Google session has expired. Sign in again to load live data.", domain.SeverityWarning, domain.ActionLogin)
}

// expire ends the session if it still holds token and reports whether it did.
func (m *SessionManager) expire(ctx context.Context, token string) bool {
	m.mu.Lock()
	if m.session == nil || m.session.Credential.AccessToken != token {
		m.mu.Unlock()
		return false
	}
	m.session = nil
	m.state = domain.SessionExpired
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("session_store_clear_failed", "error", err)
	}
	return true
}

func (m *SessionManager) notify(ctx context.Context, message string, severity domain.Severity, action string) {
	m.notifier.Notify(ctx, domain.Notification{
		Message:   message,
		Severity:  severity,
		Action:    action,
		CreatedAt: m.now().UTC(),
	})
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Notification) {}
