package domain

import "time"

type SessionState string

const (
	SessionNone           SessionState = "no_session"
	SessionAuthenticating SessionState = "authenticating"
	SessionAuthenticated  SessionState = "authenticated"
	SessionRevoked        SessionState = "revoked"
	SessionExpired        SessionState = "expired"
)

type Validity string

const (
	ValidityUnknown Validity = "unknown"
	ValidityValid   Validity = "valid"
	ValidityInvalid Validity = "invalid"
)

type CredentialSource string

const (
	SourceInteractive CredentialSource = "interactive"
	SourceRestored    CredentialSource = "restored"
)

// Credential is the bearer token handed out by the provider. It is kept only for
// the lifetime of the user's login session.
type Credential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry,omitempty"`
	ObtainedAt  time.Time `json:"obtained_at"`
}

func (c Credential) Empty() bool {
	return c.AccessToken == ""
}

type AuthSession struct {
	Credential Credential
	Validity   Validity
	Source     CredentialSource
}

type SessionStatus struct {
	State      SessionState     `json:"state"`
	Validity   Validity         `json:"validity,omitempty"`
	Source     CredentialSource `json:"source,omitempty"`
	Expiry     *time.Time       `json:"expiry,omitempty"`
	Configured bool             `json:"configured"`
}
