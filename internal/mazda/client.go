package mazda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	maxRetries     = 4
	requestTimeout = 60 * time.Second
)

// Client talks to the MyMazda connected-services API. Every application
// request carries an AES-encrypted payload and a SHA-256 signature; the keys
// come from a checkVersion handshake and are refreshed when the server
// rejects them.
type Client struct {
	email    string
	password string
	region   Region

	httpClient *http.Client

	// baseURL/usherURL default to the region endpoints; tests override them.
	baseURL  string
	usherURL string

	baseDeviceID  string
	usherDeviceID string

	mu             sync.Mutex
	encKey         string
	signKey        string
	accessToken    string
	accessTokenExp time.Time

	// waitFn is called between retries. Tests replace it to avoid sleeping.
	waitFn func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the given account and region.
func NewClient(email, password string, region Region) *Client {
	return &Client{
		email:         email,
		password:      password,
		region:        region,
		httpClient:    &http.Client{Timeout: requestTimeout},
		baseURL:       region.BaseURL,
		usherURL:      region.UsherURL,
		baseDeviceID:  uuidFromSeed(email),
		usherDeviceID: usherDeviceIDFromSeed(email),
		waitFn:        contextSleep,
	}
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// apiRequest sends one signed application request with bounded retries.
// Encryption-key and token failures trigger a re-handshake or re-login before
// the retry; a request-in-progress conflict waits out the previous command.
func (c *Client) apiRequest(ctx context.Context, method, uri string, query url.Values, body map[string]any, needsKeys, needsAuth bool) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			slog.Debug("retrying mazda request", "uri", uri, "attempt", attempt, "backoff", backoff)
			if err := c.waitFn(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if needsKeys {
			if err := c.ensureKeys(ctx); err != nil {
				return nil, err
			}
		}
		if needsAuth {
			if err := c.ensureToken(ctx); err != nil {
				return nil, err
			}
		}

		payload, err := c.sendRequest(ctx, method, uri, query, body, needsAuth)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		coded, ok := err.(*CodedError)
		if !ok {
			return nil, err
		}
		switch coded.Code {
		case CodeEncryptionRejected:
			slog.Warn("encryption keys rejected, fetching new keys", "uri", uri)
			c.mu.Lock()
			c.encKey, c.signKey = "", ""
			c.mu.Unlock()
		case CodeTokenExpired:
			slog.Warn("access token rejected, logging in again", "uri", uri)
			c.mu.Lock()
			c.accessToken = ""
			c.mu.Unlock()
		case CodeRequestInProgress:
			slog.Warn("previous remote command still in progress", "uri", uri)
			if err := c.waitFn(ctx, 30*time.Second); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	return nil, newError(CodeAPIUnavailable, fmt.Sprintf("request to %s failed after %d retries", uri, maxRetries), lastErr)
}

func (c *Client) sendRequest(ctx context.Context, method, uri string, query url.Values, body map[string]any, needsAuth bool) (json.RawMessage, error) {
	timestamp := timestampMs()
	isCheckVersion := uri == checkVersionURI

	c.mu.Lock()
	encKey, signKey, accessToken := c.encKey, c.signKey, c.accessToken
	c.mu.Unlock()

	var originalQuery, originalBody string
	var encryptedBody string
	if len(query) > 0 {
		originalQuery = query.Encode()
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, newError(CodeValidation, "encode request body", err)
		}
		originalBody = string(raw)
		enc, err := encryptPayload(originalBody, encKey)
		if err != nil {
			return nil, newError(CodeValidation, "encrypt request body", err)
		}
		encryptedBody = enc
	}

	reqURL := c.baseURL + uri
	if originalQuery != "" {
		encQuery, err := encryptPayload(originalQuery, encKey)
		if err != nil {
			return nil, newError(CodeValidation, "encrypt request query", err)
		}
		reqURL += "?" + url.Values{"params": {encQuery}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader([]byte(encryptedBody)))
	if err != nil {
		return nil, newError(CodeValidation, "build request", err)
	}

	req.Header.Set("device-id", c.baseDeviceID)
	req.Header.Set("app-code", c.region.AppCode)
	req.Header.Set("app-os", appOS)
	req.Header.Set("user-agent", userAgentBase)
	req.Header.Set("app-version", appVersion)
	req.Header.Set("app-unique-id", appPackageID)
	if needsAuth {
		req.Header.Set("access-token", accessToken)
	}
	req.Header.Set("req-id", "req_"+timestamp)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("language", "en")
	req.Header.Set("region", "us")
	req.Header.Set("locale", "en-US")

	switch {
	case isCheckVersion:
		req.Header.Set("sign", signTimestamp(timestamp, c.region.AppCode))
	case method == http.MethodGet:
		enc, err := encryptPayload(originalQuery, encKey)
		if err != nil {
			return nil, newError(CodeValidation, "sign request query", err)
		}
		req.Header.Set("sign", signPayload(enc, timestamp, signKey))
	default:
		req.Header.Set("sign", signPayload(encryptedBody, timestamp, signKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(CodeAPIUnavailable, "mazda api request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(CodeAPIUnavailable, "read mazda api response", err)
	}

	var envelope struct {
		State     string `json:"state"`
		Payload   string `json:"payload"`
		ErrorCode int    `json:"errorCode"`
		ExtraCode string `json:"extraCode"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, newError(CodeAPIUnavailable, fmt.Sprintf("unexpected response (status %d)", resp.StatusCode), err)
	}

	if envelope.State == "S" {
		key := encKey
		if isCheckVersion {
			key = decryptionKeyFromAppCode(c.region.AppCode)
		}
		decrypted, err := decryptPayload(envelope.Payload, key)
		if err != nil {
			return nil, newError(CodeEncryptionRejected, "decrypt response payload", err)
		}
		return json.RawMessage(decrypted), nil
	}

	switch {
	case envelope.ErrorCode == 600001:
		return nil, newError(CodeEncryptionRejected, "server rejected encrypted request", nil)
	case envelope.ErrorCode == 600002:
		return nil, newError(CodeTokenExpired, "access token expired", nil)
	case envelope.ErrorCode == 920000 && envelope.ExtraCode == "400S01":
		return nil, newError(CodeRequestInProgress, "another remote request is already in progress", nil)
	case envelope.ErrorCode == 920000 && envelope.ExtraCode == "400S11":
		return nil, newError(CodeEngineStartLimit, "engine start limit reached, drive the vehicle to reset the counter", nil)
	case envelope.Error != "":
		return nil, newError(CodeAPIUnavailable, "request failed: "+envelope.Error, nil)
	default:
		return nil, newError(CodeAPIUnavailable, fmt.Sprintf("request failed (errorCode %d, extraCode %q)", envelope.ErrorCode, envelope.ExtraCode), nil)
	}
}

const checkVersionURI = "service/checkVersion"

func (c *Client) ensureKeys(ctx context.Context) error {
	c.mu.Lock()
	have := c.encKey != "" && c.signKey != ""
	c.mu.Unlock()
	if have {
		return nil
	}
	return c.retrieveKeys(ctx)
}

func (c *Client) retrieveKeys(ctx context.Context) error {
	slog.Info("retrieving mazda encryption keys")
	payload, err := c.apiRequest(ctx, http.MethodPost, checkVersionURI, nil, nil, false, false)
	if err != nil {
		return err
	}
	var keys struct {
		EncKey  string `json:"encKey"`
		SignKey string `json:"signKey"`
	}
	if err := json.Unmarshal(payload, &keys); err != nil {
		return newError(CodeEncryptionRejected, "parse checkVersion payload", err)
	}
	if keys.EncKey == "" || keys.SignKey == "" {
		return newError(CodeEncryptionRejected, "checkVersion payload missing keys", nil)
	}
	c.mu.Lock()
	c.encKey, c.signKey = keys.EncKey, keys.SignKey
	c.mu.Unlock()
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	valid := c.accessToken != "" && time.Now().Before(c.accessTokenExp)
	c.mu.Unlock()
	if valid {
		return nil
	}
	return c.Login(ctx)
}

// Login authenticates against the account service: it fetches the service's
// RSA public key, encrypts the password with it, and exchanges the
// credentials for an access token.
func (c *Client) Login(ctx context.Context) error {
	slog.Info("logging in to mazda account service", "email", c.email)

	keyParams := url.Values{
		"appId":      {"MazdaApp"},
		"locale":     {"en-US"},
		"deviceId":   {c.usherDeviceID},
		"sdkVersion": {usherSDKVer},
	}
	keyReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.usherURL+"system/encryptionKey?"+keyParams.Encode(), nil)
	if err != nil {
		return newError(CodeValidation, "build encryption key request", err)
	}
	keyReq.Header.Set("User-Agent", userAgentUsher)

	keyResp, err := c.httpClient.Do(keyReq)
	if err != nil {
		return newError(CodeAPIUnavailable, "fetch account encryption key", err)
	}
	defer func() { _ = keyResp.Body.Close() }()

	var keyBody struct {
		Data struct {
			PublicKey     string `json:"publicKey"`
			VersionPrefix string `json:"versionPrefix"`
		} `json:"data"`
	}
	if err := json.NewDecoder(keyResp.Body).Decode(&keyBody); err != nil {
		return newError(CodeAPIUnavailable, "parse account encryption key", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	encryptedPassword, err := encryptPasswordRSA(keyBody.Data.PublicKey, c.password, timestamp)
	if err != nil {
		return newError(CodeAuthFailed, "encrypt password", err)
	}

	loginPayload, err := json.Marshal(map[string]any{
		"appId":      "MazdaApp",
		"deviceId":   c.usherDeviceID,
		"locale":     "en-US",
		"password":   keyBody.Data.VersionPrefix + encryptedPassword,
		"sdkVersion": usherSDKVer,
		"userId":     c.email,
		"userIdType": "email",
	})
	if err != nil {
		return newError(CodeValidation, "encode login request", err)
	}

	loginReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.usherURL+"user/login", bytes.NewReader(loginPayload))
	if err != nil {
		return newError(CodeValidation, "build login request", err)
	}
	loginReq.Header.Set("User-Agent", userAgentUsher)
	loginReq.Header.Set("Content-Type", "application/json")

	loginResp, err := c.httpClient.Do(loginReq)
	if err != nil {
		return newError(CodeAPIUnavailable, "login request failed", err)
	}
	defer func() { _ = loginResp.Body.Close() }()

	var loginBody struct {
		Status string `json:"status"`
		Data   struct {
			AccessToken             string  `json:"accessToken"`
			AccessTokenExpirationTs float64 `json:"accessTokenExpirationTs"`
		} `json:"data"`
	}
	if err := json.NewDecoder(loginResp.Body).Decode(&loginBody); err != nil {
		return newError(CodeAPIUnavailable, "parse login response", err)
	}

	switch loginBody.Status {
	case "OK":
	case "INVALID_CREDENTIAL":
		return newError(CodeAuthFailed, "invalid email or password", nil)
	case "USER_LOCKED":
		return newError(CodeAccountLocked, "account is locked", nil)
	default:
		return newError(CodeAuthFailed, "login failed: "+loginBody.Status, nil)
	}

	c.mu.Lock()
	c.accessToken = loginBody.Data.AccessToken
	c.accessTokenExp = time.Unix(int64(loginBody.Data.AccessTokenExpirationTs), 0)
	c.mu.Unlock()

	slog.Info("mazda login succeeded", "email", c.email)
	return nil
}
