package bridgeapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/mazda_agent/internal/mazda"
	"github.com/dgnsrekt/mazda_agent/internal/tokenstore"
)

// AuthHandler drives the PKCE authorization-code flow from the API: hand out
// an authorize URL, then exchange the code the capture agent picked up. The
// verifier lives only in memory between the two calls, so the exchange must
// happen against the same bridge process that issued the URL.
type AuthHandler struct {
	cfg        mazda.OAuthConfig
	store      *tokenstore.Store
	httpClient *http.Client

	mu      sync.Mutex
	pending *mazda.OAuthFlow
	state   string
}

// NewAuthHandler wires the OAuth helper endpoints. store may be nil to skip
// persistence.
func NewAuthHandler(cfg mazda.OAuthConfig, store *tokenstore.Store) *AuthHandler {
	return &AuthHandler{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type authURLOutput struct {
	Body struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
}

type tokenOutput struct {
	Body struct {
		TokenType   string `json:"token_type"`
		Expiry      string `json:"expiry"`
		HasRefresh  bool   `json:"has_refresh_token"`
		PersistedTo string `json:"persisted_to,omitempty"`
	}
}

func (h *AuthHandler) register(api huma.API) {
	huma.Register(api, huma.Operation{OperationID: "auth-url", Method: http.MethodGet, Path: "/api/v1/auth/url", Summary: "Build a fresh authorize URL to open in the login browser", Tags: []string{"Auth"}},
		func(ctx context.Context, input *struct{}) (*authURLOutput, error) {
			state, err := randomState()
			if err != nil {
				return nil, huma.Error500InternalServerError("generate state: " + err.Error())
			}

			h.mu.Lock()
			h.pending = mazda.NewOAuthFlow(h.cfg)
			h.state = state
			url := h.pending.AuthCodeURL(state)
			h.mu.Unlock()

			out := &authURLOutput{}
			out.Body.URL = url
			out.Body.State = state
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "auth-exchange", Method: http.MethodPost, Path: "/api/v1/auth/exchange", Summary: "Exchange a captured authorization code for tokens", Tags: []string{"Auth"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Code  string `json:"code" required:"true"`
				State string `json:"state,omitempty"`
			}
		}) (*tokenOutput, error) {
			h.mu.Lock()
			flow := h.pending
			wantState := h.state
			h.mu.Unlock()

			if flow == nil {
				return nil, huma.Error409Conflict("no authorization flow in progress; call /api/v1/auth/url first")
			}
			if input.Body.State != "" && input.Body.State != wantState {
				return nil, huma.Error400BadRequest("state does not match the pending flow")
			}

			tok, err := flow.Exchange(ctx, input.Body.Code)
			if err != nil {
				return nil, mapErr(err)
			}

			h.mu.Lock()
			h.pending = nil
			h.state = ""
			h.mu.Unlock()

			out := &tokenOutput{}
			out.Body.TokenType = tok.TokenType
			out.Body.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
			out.Body.HasRefresh = tok.RefreshToken != ""
			if h.store != nil {
				if err := h.store.Save(tok); err != nil {
					slog.Error("persist token failed", "error", err)
				} else {
					out.Body.PersistedTo = h.store.Path()
				}
			}
			slog.Info("authorization code exchanged", "has_refresh_token", out.Body.HasRefresh)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "auth-refresh", Method: http.MethodPost, Path: "/api/v1/auth/refresh", Summary: "Refresh the persisted token against the B2C token endpoint", Tags: []string{"Auth"}},
		func(ctx context.Context, input *struct{}) (*tokenOutput, error) {
			if h.store == nil {
				return nil, huma.Error409Conflict("no token store configured")
			}
			stored, err := h.store.Load()
			if err != nil {
				if errors.Is(err, tokenstore.ErrNotFound) {
					return nil, huma.Error404NotFound("no saved token; complete an authorization flow first")
				}
				return nil, huma.Error500InternalServerError("load token: " + err.Error())
			}

			tok, err := mazda.RefreshToken(ctx, h.httpClient, h.cfg, stored.RefreshToken)
			if err != nil {
				// A confirmed rejection means the refresh token is dead;
				// clear it so the next call reports the real state. Transient
				// failures keep the old token for the next attempt.
				var coded *mazda.CodedError
				if errors.As(err, &coded) && coded.Code == mazda.CodeAuthFailed {
					if clearErr := h.store.Clear(); clearErr != nil {
						slog.Error("clear rejected token failed", "error", clearErr)
					} else {
						slog.Warn("refresh token rejected, cleared persisted token")
					}
				}
				return nil, mapErr(err)
			}

			out := &tokenOutput{}
			out.Body.TokenType = tok.TokenType
			out.Body.Expiry = tok.Expiry.UTC().Format(time.RFC3339)
			out.Body.HasRefresh = tok.RefreshToken != ""
			if err := h.store.Save(tok); err != nil {
				slog.Error("persist refreshed token failed", "error", err)
			} else {
				out.Body.PersistedTo = h.store.Path()
			}
			slog.Info("token refreshed", "expiry", out.Body.Expiry)
			return out, nil
		})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
