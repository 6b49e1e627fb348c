package config

import "testing"

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "billing", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		TaxAuthority: TaxAuthorityConfig{
			BaseURL: "https://einvoice.example.test",
			APIKey:  "k",
		},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "billing"
	c.Auth.JWTAudience = "api"
	c.TaxAuthority.WebhookSecret = "whsec"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Billing.Currency != "KRW" {
		t.Fatalf("expected KRW default currency, got %q", c.Billing.Currency)
	}
	if c.Billing.VolumeDiscountThresholdMinor != 10_000_000 {
		t.Fatalf("expected default discount threshold, got %d", c.Billing.VolumeDiscountThresholdMinor)
	}
	if c.Billing.VolumeDiscountRateBP != 500 {
		t.Fatalf("expected default discount rate, got %d", c.Billing.VolumeDiscountRateBP)
	}
}

func TestValidate_RequiresTaxAuthority(t *testing.T) {
	c := validBase()
	c.TaxAuthority.BaseURL = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing authority base URL")
	}
}
