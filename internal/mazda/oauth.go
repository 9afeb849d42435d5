package mazda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Azure AD B2C constants for the MyMazda sign-in flow.
const (
	b2cTenant = "432b587f-88ad-40aa-9e5d-e6bcf9429e8d"
	b2cPolicy = "b2c_1a_signin"

	defaultOAuthHost = "eu.id.mazda.com"
)

// MSAL client hints sent alongside the authorize request; the B2C policy
// inspects them.
var msalParams = url.Values{
	"x-app-name":               {appPackageID},
	"x-app-ver":                {appVersion},
	"x-client-SKU":             {"MSAL.Android"},
	"x-client-Ver":             {"5.8.2"},
	"x-client-OS":              {"34"},
	"x-client-DM":              {"Pixel 9"},
	"x-client-CPU":             {"arm64-v8a"},
	"haschrome":                {"1"},
	"return-client-request-id": {"true"},
	"client_info":              {"1"},
}

// OAuthConfig describes one B2C application registration.
type OAuthConfig struct {
	ClientID    string
	RedirectURI string
	Scopes      []string

	// Host overrides the B2C host; empty uses the EU deployment.
	Host string
}

// OAuthFlow is one PKCE authorization-code flow: build the authorize URL,
// send the user's browser there, then exchange the captured code.
type OAuthFlow struct {
	cfg      *oauth2.Config
	verifier string
	tokenURL string
}

func b2cEndpoint(host, endpoint string) string {
	if host == "" {
		host = defaultOAuthHost
	}
	return fmt.Sprintf("https://%s/%s/%s/oauth2/v2.0/%s", host, b2cTenant, b2cPolicy, endpoint)
}

// NewOAuthFlow creates a flow with a fresh PKCE verifier.
func NewOAuthFlow(cfg OAuthConfig) *OAuthFlow {
	return &OAuthFlow{
		cfg: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  b2cEndpoint(cfg.Host, "authorize"),
				TokenURL: b2cEndpoint(cfg.Host, "token"),
			},
		},
		verifier: oauth2.GenerateVerifier(),
		tokenURL: b2cEndpoint(cfg.Host, "token"),
	}
}

// AuthCodeURL returns the authorize URL the user's browser must visit. state
// is round-tripped through the redirect and classified on capture.
func (f *OAuthFlow) AuthCodeURL(state string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(f.verifier)}
	for key, vals := range msalParams {
		opts = append(opts, oauth2.SetAuthURLParam(key, vals[0]))
	}
	return f.cfg.AuthCodeURL(state, opts...)
}

// Exchange trades a captured authorization code for tokens.
func (f *OAuthFlow) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := f.cfg.Exchange(ctx, code, oauth2.VerifierOption(f.verifier))
	if err != nil {
		return nil, newError(CodeAuthFailed, "authorization code exchange failed", err)
	}
	return tok, nil
}

// RefreshToken refreshes an OAuth token against the B2C token endpoint
// directly. B2C transiently answers with text/html during service hiccups;
// that is mapped to CodeTransient so callers retry on the next cycle instead
// of discarding the refresh token. A JSON error body is a confirmed permanent
// failure (CodeAuthFailed).
func RefreshToken(ctx context.Context, client *http.Client, cfg OAuthConfig, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, newError(CodeAuthFailed, "no refresh token", nil)
	}
	if client == nil {
		client = http.DefaultClient
	}

	form := url.Values{
		"client_id":     {cfg.ClientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(cfg.Scopes, " ")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b2cEndpoint(cfg.Host, "token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(CodeValidation, "build refresh request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, newError(CodeTransient, "token refresh request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(CodeTransient, "read token refresh response", err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, newError(CodeTransient, "token endpoint returned HTML instead of JSON", nil)
	}

	var tokenBody struct {
		AccessToken      string `json:"access_token"`
		RefreshToken     string `json:"refresh_token"`
		TokenType        string `json:"token_type"`
		ExpiresIn        int64  `json:"expires_in"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &tokenBody); err != nil {
		return nil, newError(CodeTransient, fmt.Sprintf("unparseable token refresh response (status %d)", resp.StatusCode), err)
	}
	if tokenBody.Error != "" {
		msg := tokenBody.ErrorDescription
		if msg == "" {
			msg = tokenBody.Error
		}
		return nil, newError(CodeAuthFailed, "token refresh rejected: "+msg, nil)
	}
	if tokenBody.AccessToken == "" {
		return nil, newError(CodeTransient, "token refresh response missing access token", nil)
	}

	tok := &oauth2.Token{
		AccessToken:  tokenBody.AccessToken,
		RefreshToken: tokenBody.RefreshToken,
		TokenType:    tokenBody.TokenType,
		Expiry:       time.Now().Add(time.Duration(tokenBody.ExpiresIn) * time.Second),
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}
