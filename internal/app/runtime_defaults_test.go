package app

import (
	"strings"
	"testing"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{}

	generated, degraded, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if cfg.Auth.JWT.Secret == "" {
		t.Fatal("expected JWT secret to be generated")
	}
	if !generated["auth.jwt.secret"] {
		t.Fatalf("expected generated map to include jwt secret: %#v", generated)
	}
	if cfg.Dispatch.Concurrency != 4 {
		t.Fatalf("expected dispatch concurrency default, got %d", cfg.Dispatch.Concurrency)
	}
	if len(degraded) != 2 {
		t.Fatalf("expected missing LINE credentials to be reported, got %v", degraded)
	}
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = strings.Repeat("a", 10)
	cfg.Dispatch.Concurrency = 2
	cfg.Line.ChannelAccessToken = "token"
	cfg.Line.ChannelSecret = "secret"

	generated, degraded, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}

	if len(generated) != 0 {
		t.Fatalf("expected no keys generated, got %#v", generated)
	}
	if len(degraded) != 0 {
		t.Fatalf("expected no degraded integrations, got %v", degraded)
	}
}

func TestApplyRuntimeDefaultsFlagsMissingFCMCredentials(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "secret"
	cfg.Line.ChannelAccessToken = "token"
	cfg.Line.ChannelSecret = "secret"
	cfg.Push.Provider = "fcm"

	_, degraded, err := ApplyRuntimeDefaults(cfg)
	if err != nil {
		t.Fatalf("ApplyRuntimeDefaults returned error: %v", err)
	}
	if len(degraded) != 1 || degraded[0] != "push.fcm.credentials_file" {
		t.Fatalf("unexpected degraded list %v", degraded)
	}
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, _, err := ApplyRuntimeDefaults(nil)
	if err == nil || !strings.Contains(err.Error(), "config is nil") {
		t.Fatalf("expected nil config error, got %v", err)
	}
}

func TestGenerateHexKey(t *testing.T) {
	key, err := generateHexKey(4)
	if err != nil {
		t.Fatalf("generateHexKey returned error: %v", err)
	}
	if len(key) != 8 {
		t.Fatalf("expected encoded length 8, got %d", len(key))
	}

	if _, err = generateHexKey(0); err == nil {
		t.Fatal("expected error when length <= 0")
	}
}
