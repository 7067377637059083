package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://ledger:pw@localhost:5432/ledger")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DISBURSEMENT_CALLBACK_TOKEN", "cb-token")
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	viper.Reset()
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("server port = %q, want default 8080", cfg.ServerPort)
	}
	if cfg.WithdrawalFixedFee != 5000 {
		t.Fatalf("fixed fee = %d, want default 5000", cfg.WithdrawalFixedFee)
	}
	if cfg.WithdrawalFeeBps != 500 {
		t.Fatalf("fee bps = %d, want default 500", cfg.WithdrawalFeeBps)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	viper.Reset()
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9091")
	t.Setenv("WITHDRAWAL_FIXED_FEE", "1000")
	t.Setenv("WITHDRAWAL_FEE_BPS", "250")
	t.Setenv("PAYMENT_WEBHOOK_TOKEN", "pw-token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServerPort != "9091" {
		t.Fatalf("server port = %q, want 9091", cfg.ServerPort)
	}
	if cfg.WithdrawalFixedFee != 1000 || cfg.WithdrawalFeeBps != 250 {
		t.Fatalf("fees = %d/%d, want 1000/250", cfg.WithdrawalFixedFee, cfg.WithdrawalFeeBps)
	}
	if cfg.PaymentWebhookToken != "pw-token" {
		t.Fatalf("payment webhook token = %q, want pw-token", cfg.PaymentWebhookToken)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	cases := []struct {
		name  string
		unset string
	}{
		{"database url", "DATABASE_URL"},
		{"jwt secret", "JWT_SECRET"},
		{"callback token", "DISBURSEMENT_CALLBACK_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			setRequiredEnv(t)
			t.Setenv(tc.unset, "")

			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error when %s is missing", tc.unset)
			} else if !strings.Contains(err.Error(), tc.unset) {
				t.Fatalf("error %q does not name %s", err, tc.unset)
			}
		})
	}
}

func TestLoadConfig_NegativeFeesRejected(t *testing.T) {
	viper.Reset()
	setRequiredEnv(t)
	t.Setenv("WITHDRAWAL_FEE_BPS", "-1")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for negative fee")
	}
}
