package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenSecurity(t *testing.T) {
	const token = "0x6982508145454Ce325dDbE47a25d4ec3d2311933" // mixed case on purpose

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/token_security/1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    1,
			"message": "OK",
			"result": map[string]interface{}{
				"0x6982508145454ce325ddbe47a25d4ec3d2311933": map[string]string{
					"is_open_source":          "1",
					"hidden_owner":            "0",
					"can_take_back_ownership": "0",
					"is_mintable":             "1",
					"is_blacklisted":          "0",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewGoPlusClient()
	client.baseURL = srv.URL

	verdict, err := client.TokenSecurity(context.Background(), token)
	if err != nil {
		t.Fatalf("TokenSecurity() error = %v", err)
	}
	if !verdict.IsOpenSource {
		t.Error("IsOpenSource = false, want true")
	}
	if verdict.HiddenOwner {
		t.Error("HiddenOwner = true, want false")
	}
	if !verdict.IsMintable {
		t.Error("IsMintable = false, want true")
	}
}

func TestTokenSecurityAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 4029, "message": "rate limited"})
	}))
	defer srv.Close()

	client := NewGoPlusClient()
	client.baseURL = srv.URL

	if _, err := client.TokenSecurity(context.Background(), "0xtoken"); err == nil {
		t.Error("expected error for API rejection, got nil")
	}
}

func TestTokenSecurityMissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":   1,
			"result": map[string]interface{}{},
		})
	}))
	defer srv.Close()

	client := NewGoPlusClient()
	client.baseURL = srv.URL

	if _, err := client.TokenSecurity(context.Background(), "0xtoken"); err == nil {
		t.Error("expected error when token missing from result, got nil")
	}
}
