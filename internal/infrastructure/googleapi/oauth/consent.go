package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

const (
	DefaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	ScopeAnalyticsReadonly  = "https://www.googleapis.com/auth/analytics.readonly"
	ScopeWebmastersReadonly = "https://www.googleapis.com/auth/webmasters.readonly"

	defaultConsentTimeout = 5 * time.Minute
	defaultListenAddr     = "127.0.0.1:0"
	callbackPath          = "/oauth2/callback"
)

var DefaultScopes = []string{ScopeAnalyticsReadonly, ScopeWebmastersReadonly}

type ConsentOptions struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	// ListenAddr is the loopback address the redirect lands on.
	ListenAddr string
	// Prompt receives the consent URL the user has to open.
	Prompt io.Writer
	// Open optionally launches a browser. Failures fall back to the prompt.
	Open       func(url string) error
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// LoopbackConsent runs the installed-app authorization code flow with PKCE and
// a one-shot redirect listener on the loopback interface.
type LoopbackConsent struct {
	opts ConsentOptions
	now  func() time.Time
}

func NewLoopbackConsent(opts ConsentOptions) *LoopbackConsent {
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = defaultListenAddr
	}
	if opts.Prompt == nil {
		opts.Prompt = io.Discard
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultConsentTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LoopbackConsent{opts: opts, now: time.Now}
}

type callbackResult struct {
	code string
	err  error
}

func (c *LoopbackConsent) RequestGrant(ctx context.Context) (domain.Credential, error) {
	listener, err := net.Listen("tcp", c.opts.ListenAddr)
	if err != nil {
		return domain.Credential{}, domain.WrapError(domain.ErrConsentDenied, "consent listen", err)
	}

	cfg := &oauth2.Config{
		ClientID:     c.opts.ClientID,
		ClientSecret: c.opts.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.opts.AuthURL,
			TokenURL: c.opts.TokenURL,
		},
		RedirectURL: "http://" + listener.Addr().String() + callbackPath,
		Scopes:      c.opts.Scopes,
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		res := readCallback(r, state)
		if res.err != nil {
			http.Error(w, "Sign-in did not complete. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "Signed in. You can close this window and return to the hub.")
		}
		select {
		case results <- res:
		default:
		}
	})
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			c.opts.Logger.Warn("consent_listener_failed", "error", serveErr)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	fmt.Fprintf(c.opts.Prompt, "Open this URL in your browser to connect Google:\n\n  %s\n\n", authURL)
	if c.opts.Open != nil {
		if openErr := c.opts.Open(authURL); openErr != nil {
			c.opts.Logger.Debug("consent_browser_open_failed", "error", openErr)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-waitCtx.Done():
		return domain.Credential{}, domain.WrapError(domain.ErrConsentDenied, "consent wait", waitCtx.Err())
	}
	if res.err != nil {
		return domain.Credential{}, res.err
	}

	if c.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.opts.HTTPClient)
	}
	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return domain.Credential{}, domain.WrapError(domain.ErrConsentDenied, "consent exchange", err)
		}
		return domain.Credential{}, domain.WrapError(domain.ErrTemporary, "consent exchange", err)
	}

	return domain.Credential{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
		ObtainedAt:  c.now().UTC(),
	}, nil
}

func readCallback(r *http.Request, state string) callbackResult {
	q := r.URL.Query()
	if q.Get("state") != state {
		return callbackResult{err: domain.WrapError(domain.ErrConsentDenied, "consent callback", fmt.Errorf("state mismatch"))}
	}
	if reason := q.Get("error"); reason != "" {
		return callbackResult{err: domain.WrapError(domain.ErrConsentDenied, "consent callback", fmt.Errorf("provider returned %s", reason))}
	}
	code := q.Get("code")
	if code == "" {
		return callbackResult{err: domain.WrapError(domain.ErrConsentDenied, "consent callback", fmt.Errorf("authorization code is missing"))}
	}
	return callbackResult{code: code}
}
