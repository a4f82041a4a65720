package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testFlow(server *httptest.Server) *Flow {
	f := NewFlow("test")
	f.DeviceCodeURL = server.URL + "/device/code"
	f.TokenURL = server.URL + "/token"
	return f
}

func TestRequestDeviceCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/code" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("code_challenge") == "" || r.Form.Get("code_challenge_method") != "S256" {
			t.Error("expected PKCE challenge in request")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"device_code":               "dev-1",
			"user_code":                 "ABCD-EFGH",
			"verification_uri":          "https://portal.example/activate",
			"verification_uri_complete": "https://portal.example/activate?code=ABCD-EFGH",
			"expires_in":                600,
			"interval":                  5,
		})
	}))
	defer server.Close()

	da, err := testFlow(server).RequestDeviceCode(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if da.DeviceCode != "dev-1" || da.UserCode != "ABCD-EFGH" {
		t.Errorf("unexpected authorization: %+v", da)
	}
	if da.VerifyURL() != "https://portal.example/activate?code=ABCD-EFGH" {
		t.Errorf("VerifyURL should prefer the complete URI, got %q", da.VerifyURL())
	}
	if da.verifier == "" {
		t.Error("verifier should be retained for token polling")
	}
}

func TestRequestDeviceCodeMissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"interval": 5})
	}))
	defer server.Close()

	if _, err := testFlow(server).RequestDeviceCode(context.Background()); err == nil {
		t.Error("expected error for response without device_code")
	}
}

func TestCheckTokenPassesVerifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("device_code") != "dev-1" || r.Form.Get("code_verifier") != "secret" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		json.NewEncoder(w).Encode(map[string]any{"error": "authorization_pending"})
	}))
	defer server.Close()

	da := &DeviceAuthorization{DeviceCode: "dev-1", verifier: "secret"}
	tok, err := testFlow(server).CheckToken(context.Background(), da)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Error != "authorization_pending" {
		t.Errorf("unexpected token response: %+v", tok)
	}
}

func TestCredentialFromToken(t *testing.T) {
	f := NewFlow("qwen")
	cred := f.CredentialFromToken(&TokenResponse{
		AccessToken:  "tok",
		RefreshToken: "ref",
		ExpiresIn:    3600,
		ResourceURL:  "https://api.example",
	})
	if cred.Provider != "qwen" || cred.AuthMethod != "oauth" {
		t.Errorf("unexpected credential: %+v", cred)
	}
	if cred.ExpiresAt.Before(time.Now().Add(50 * time.Minute)) {
		t.Error("expiry should be about an hour out")
	}
}

func TestRefreshRequiresToken(t *testing.T) {
	f := NewFlow("test")
	if _, err := f.Refresh(context.Background(), &Credential{}); err == nil {
		t.Error("expected error without refresh token")
	}
}

func TestRefreshExchangesToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("unexpected grant type: %q", r.Form.Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-tok",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	cred, err := testFlow(server).Refresh(context.Background(), &Credential{
		AccessToken:  "old-tok",
		RefreshToken: "ref",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.AccessToken != "new-tok" {
		t.Errorf("expected refreshed token, got %q", cred.AccessToken)
	}
	if cred.RefreshToken != "ref" {
		t.Error("refresh token should be kept when the server omits a new one")
	}
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cred := &Credential{AccessToken: "tok", Provider: "qwen", AuthMethod: "oauth"}
	if err := SetCredential("qwen", cred); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := GetCredential("qwen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.AccessToken != "tok" {
		t.Errorf("unexpected credential: %+v", got)
	}

	if missing, _ := GetCredential("other"); missing != nil {
		t.Errorf("expected nil for unknown provider, got %+v", missing)
	}

	if err := DeleteCredential("qwen"); err != nil {
		t.Fatal(err)
	}
	if gone, _ := GetCredential("qwen"); gone != nil {
		t.Error("credential should be deleted")
	}
}

func TestTokenSourceReturnsStoredToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cred := &Credential{
		AccessToken: "fresh-token",
		Provider:    "qwen",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := SetCredential("qwen", cred); err != nil {
		t.Fatal(err)
	}

	source := TokenSource("qwen")
	tok, err := source()
	if err != nil {
		t.Fatalf("token source: %v", err)
	}
	if tok != "fresh-token" {
		t.Errorf("token = %q, want fresh-token", tok)
	}
}

func TestTokenSourceWithoutCredential(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	source := TokenSource("qwen")
	if _, err := source(); err == nil {
		t.Error("expected error when not authenticated")
	}
}
