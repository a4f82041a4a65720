package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultOAuthBaseURL = "https://chat.qwen.ai"
	defaultClientID     = "f0304373b74a44d2b584a3fb70ca9e56"
	defaultScope        = "openid profile email model.completion"
	deviceGrantType     = "urn:ietf:params:oauth:grant-type:device_code"
)

// Flow holds the endpoints and client identity for one OAuth
// device-code flow.
type Flow struct {
	ClientID      string
	Scope         string
	DeviceCodeURL string
	TokenURL      string
	Provider      string

	client *http.Client
}

// NewFlow returns a flow against the default portal endpoints.
func NewFlow(provider string) *Flow {
	return &Flow{
		ClientID:      defaultClientID,
		Scope:         defaultScope,
		DeviceCodeURL: defaultOAuthBaseURL + "/api/v1/oauth2/device/code",
		TokenURL:      defaultOAuthBaseURL + "/api/v1/oauth2/token",
		Provider:      provider,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

// DeviceAuthorization is the server's answer to a device-code request.
type DeviceAuthorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`

	verifier string
}

// VerifyURL returns the URL the user should open, preferring the
// complete form that embeds the user code.
func (da *DeviceAuthorization) VerifyURL() string {
	if da.VerificationURIComplete != "" {
		return da.VerificationURIComplete
	}
	return da.VerificationURI
}

// TokenResponse is one answer from the token polling endpoint.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	TokenType        string `json:"token_type"`
	ResourceURL      string `json:"resource_url"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// generatePKCE generates a PKCE (RFC 7636) verifier and S256 challenge pair.
func generatePKCE() (verifier, challenge string, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating PKCE verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(raw)

	h := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(h[:])
	return verifier, challenge, nil
}

// RequestDeviceCode starts the flow: it obtains a device authorization
// the user can approve in a browser.
func (f *Flow) RequestDeviceCode(ctx context.Context) (*DeviceAuthorization, error) {
	verifier, challenge, err := generatePKCE()
	if err != nil {
		return nil, err
	}

	body := url.Values{}
	body.Set("client_id", f.ClientID)
	body.Set("scope", f.Scope)
	body.Set("code_challenge", challenge)
	body.Set("code_challenge_method", "S256")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.DeviceCodeURL, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-request-id", uuid.NewString())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device code request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device code request failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var da DeviceAuthorization
	if err := json.Unmarshal(respBody, &da); err != nil {
		return nil, fmt.Errorf("parsing device code response: %w", err)
	}
	if da.DeviceCode == "" || da.UserCode == "" {
		return nil, fmt.Errorf("invalid device code response: missing device_code or user_code")
	}
	da.verifier = verifier
	return &da, nil
}

// CheckToken performs one token-endpoint poll for a device code.
func (f *Flow) CheckToken(ctx context.Context, da *DeviceAuthorization) (*TokenResponse, error) {
	body := url.Values{}
	body.Set("grant_type", deviceGrantType)
	body.Set("client_id", f.ClientID)
	body.Set("device_code", da.DeviceCode)
	body.Set("code_verifier", da.verifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.TokenURL, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	return &tok, nil
}

// CredentialFromToken builds a stored credential from a granted token.
func (f *Flow) CredentialFromToken(tok *TokenResponse) *Credential {
	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Provider:     f.Provider,
		AuthMethod:   "oauth",
		ResourceURL:  tok.ResourceURL,
	}
	if tok.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return cred
}

// Refresh exchanges a refresh token for a new access token.
func (f *Flow) Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if cred == nil || cred.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available, run the login command again")
	}

	body := url.Values{}
	body.Set("grant_type", "refresh_token")
	body.Set("refresh_token", cred.RefreshToken)
	body.Set("client_id", f.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.TokenURL, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("refresh token expired, run the login command again")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var tok TokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return nil, fmt.Errorf("parsing refresh response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("refresh response missing access_token")
	}

	newCred := *cred
	newCred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		newCred.RefreshToken = tok.RefreshToken
	}
	if tok.ExpiresIn > 0 {
		newCred.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return &newCred, nil
}

// TokenSource returns a closure resolving a bearer token for the provider,
// refreshing through the token endpoint when the stored credential is close
// to expiry. A failed refresh falls back to the current token.
func TokenSource(provider string) func() (string, error) {
	flow := NewFlow(provider)
	return func() (string, error) {
		cred, err := GetCredential(provider)
		if err != nil {
			return "", fmt.Errorf("loading %s credentials: %w", provider, err)
		}
		if cred == nil || cred.AccessToken == "" {
			return "", fmt.Errorf("not authenticated with %s, run: vaultpilot auth login --provider %s", provider, provider)
		}
		if cred.NeedsRefresh() && cred.RefreshToken != "" {
			newCred, refreshErr := flow.Refresh(context.Background(), cred)
			if refreshErr == nil {
				_ = SetCredential(provider, newCred)
				return newCred.AccessToken, nil
			}
		}
		return cred.AccessToken, nil
	}
}
