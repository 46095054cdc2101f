package oauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
)

const (
	DefaultTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"
	DefaultRevokeURL    = "https://oauth2.googleapis.com/revoke"
)

// TokenInfo checks bearer tokens against the tokeninfo endpoint and revokes them.
type TokenInfo struct {
	api          *googleapi.Client
	tokenInfoURL string
	revokeURL    string
}

func NewTokenInfo(api *googleapi.Client, tokenInfoURL, revokeURL string) *TokenInfo {
	if tokenInfoURL == "" {
		tokenInfoURL = DefaultTokenInfoURL
	}
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}
	return &TokenInfo{
		api:          api,
		tokenInfoURL: strings.TrimRight(tokenInfoURL, "/"),
		revokeURL:    strings.TrimRight(revokeURL, "/"),
	}
}

type tokenInfoResponse struct {
	Audience  string `json:"audience"`
	Scope     string `json:"scope"`
	ExpiresIn int64  `json:"expires_in"`
}

// Verify reports a token as live while the provider still grants it lifetime.
// A rejected token is a definite "not live", not an error.
func (t *TokenInfo) Verify(ctx context.Context, accessToken string) (bool, error) {
	var resp tokenInfoResponse
	err := t.api.Do(ctx, googleapi.Call{
		Operation: "oauth.tokeninfo",
		Method:    http.MethodPost,
		URL:       t.tokenInfoURL,
		Form:      map[string]string{"access_token": accessToken},
	}, &resp)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) || domain.IsKind(err, domain.ErrUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return resp.ExpiresIn > 0, nil
}

func (t *TokenInfo) Revoke(ctx context.Context, accessToken string) error {
	return t.api.Do(ctx, googleapi.Call{
		Operation: "oauth.revoke",
		Method:    http.MethodPost,
		URL:       t.revokeURL,
		Form:      map[string]string{"token": accessToken},
	}, nil)
}
