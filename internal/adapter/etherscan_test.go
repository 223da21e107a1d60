package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestEtherscanClient(srvURL string) *EtherscanClient {
	client := NewEtherscanClient("test-key")
	client.baseURL = srvURL
	return client
}

func TestContractCreationTx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("module"); got != "contract" {
			t.Errorf("module = %q, want contract", got)
		}
		if got := q.Get("action"); got != "getcontractcreation" {
			t.Errorf("action = %q, want getcontractcreation", got)
		}
		if got := q.Get("apikey"); got != "test-key" {
			t.Errorf("apikey = %q, want test-key", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "1",
			"message": "OK",
			"result": []map[string]string{
				{
					"contractAddress": q.Get("contractaddresses"),
					"contractCreator": "0xcreator",
					"txHash":          "0xdeadbeef",
				},
			},
		})
	}))
	defer srv.Close()

	txHash, err := newTestEtherscanClient(srv.URL).ContractCreationTx(context.Background(), "0xtoken")
	if err != nil {
		t.Fatalf("ContractCreationTx() error = %v", err)
	}
	if txHash != "0xdeadbeef" {
		t.Errorf("ContractCreationTx() = %q, want 0xdeadbeef", txHash)
	}
}

func TestContractCreationTxNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "0",
			"message": "No data found",
			"result":  []map[string]string{},
		})
	}))
	defer srv.Close()

	if _, err := newTestEtherscanClient(srv.URL).ContractCreationTx(context.Background(), "0xtoken"); err == nil {
		t.Error("expected error for unknown contract, got nil")
	}
}

func TestContractCreationTxMissingAPIKey(t *testing.T) {
	client := NewEtherscanClient("")
	if _, err := client.ContractCreationTx(context.Background(), "0xtoken"); err == nil {
		t.Error("expected error for missing API key, got nil")
	}
}
