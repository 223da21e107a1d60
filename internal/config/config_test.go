package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("TELEGRAM_RECIPIENTS", "265435469,278239097"); err != nil {
		t.Fatalf("Failed to set TELEGRAM_RECIPIENTS: %v", err)
	}
	if err := os.Setenv("WEBHOOK_DEDUP_TTL", "12h"); err != nil {
		t.Fatalf("Failed to set WEBHOOK_DEDUP_TTL: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("TELEGRAM_RECIPIENTS")
		_ = os.Unsetenv("WEBHOOK_DEDUP_TTL")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if len(cfg.Telegram.Recipients) != 2 || cfg.Telegram.Recipients[0] != 265435469 {
		t.Errorf("Telegram.Recipients = %v, want [265435469 278239097]", cfg.Telegram.Recipients)
	}
	if cfg.Alerts.DedupTTL != 12*time.Hour {
		t.Errorf("Alerts.DedupTTL = %v, want %v", cfg.Alerts.DedupTTL, 12*time.Hour)
	}
	if cfg.Delivery.MaxRetries != 3 {
		t.Errorf("Delivery.MaxRetries = %v, want 3", cfg.Delivery.MaxRetries)
	}
}

func TestLoadConfigInvalidRecipients(t *testing.T) {
	if err := os.Setenv("TELEGRAM_RECIPIENTS", "123,abc"); err != nil {
		t.Fatalf("Failed to set TELEGRAM_RECIPIENTS: %v", err)
	}
	defer func() { _ = os.Unsetenv("TELEGRAM_RECIPIENTS") }()

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for non-numeric recipient")
	}
}

func TestDefaultDefinitions(t *testing.T) {
	defs := DefaultDefinitions()
	if len(defs) != 2 {
		t.Fatalf("DefaultDefinitions() returned %d definitions, want 2", len(defs))
	}

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			t.Errorf("default definition %q failed validation: %v", def.Name, err)
		}
		if _, ok := def.ExclusionSet()[wethAddress]; !ok {
			t.Errorf("definition %q does not exclude WETH", def.Name)
		}
	}

	if defs[0].Filter.MinDistinctWallets != 3 {
		t.Errorf("alert 1 MinDistinctWallets = %d, want 3", defs[0].Filter.MinDistinctWallets)
	}
	if defs[1].Filter.MinDistinctWallets != 4 {
		t.Errorf("alert 2 MinDistinctWallets = %d, want 4", defs[1].Filter.MinDistinctWallets)
	}
}

func TestAlertDefinitionValidate(t *testing.T) {
	valid := AlertDefinition{
		ID:   1,
		Name: "test",
		Query: AlertQuery{
			PageSize:    100,
			ValueFilter: 120,
		},
		Filter: AlertFilter{
			WindowMinutes:      5,
			MinDistinctWallets: 2,
		},
	}

	tests := []struct {
		name    string
		mutate  func(*AlertDefinition)
		wantErr bool
	}{
		{"valid", func(d *AlertDefinition) {}, false},
		{"missing name", func(d *AlertDefinition) { d.Name = "" }, true},
		{"zero page size", func(d *AlertDefinition) { d.Query.PageSize = 0 }, true},
		{"zero window", func(d *AlertDefinition) { d.Filter.WindowMinutes = 0 }, true},
		{"zero min wallets", func(d *AlertDefinition) { d.Filter.MinDistinctWallets = 0 }, true},
		{"bad wallet rule", func(d *AlertDefinition) {
			d.WalletFilter = &WalletQualityFilter{Rule: "most"}
		}, true},
		{"any wallet rule", func(d *AlertDefinition) {
			d.WalletFilter = &WalletQualityFilter{Rule: WalletRuleAny, MinWinRate: 0.5}
		}, false},
		{"every wallet rule", func(d *AlertDefinition) {
			d.WalletFilter = &WalletQualityFilter{Rule: WalletRuleEvery, MinROI: 1.0}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := valid
			tt.mutate(&def)
			err := def.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefinitionsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alerts.json")

	content := `[
		{
			"name": "custom alert",
			"query": {"pageSize": 50, "valueFilter": 200, "walletAgeDays": 3},
			"filter": {"minsAgo": 10, "minDistinctWallets": 2, "excludedTokens": ["0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"]}
		}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write alerts file: %v", err)
	}

	defs, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("LoadDefinitions() error = %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("LoadDefinitions() returned %d definitions, want 1", len(defs))
	}
	if defs[0].ID != 1 {
		t.Errorf("definition without id should be numbered, got %d", defs[0].ID)
	}
	if defs[0].Filter.WindowMinutes != 10 {
		t.Errorf("WindowMinutes = %d, want 10", defs[0].Filter.WindowMinutes)
	}
}

func TestLoadDefinitionsRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alerts.json")

	content := `[{"name": "", "query": {"pageSize": 50}, "filter": {"minsAgo": 10, "minDistinctWallets": 2}}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write alerts file: %v", err)
	}

	if _, err := LoadDefinitions(path); err == nil {
		t.Error("LoadDefinitions() expected validation error for unnamed definition")
	}
}
