package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills settings the server cannot start without and
// reports which optional integrations are running in degraded mode. The
// generated map names keys that were populated so callers can log the event
// without exposing values; the degraded slice lists integrations that will
// no-op.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, []string, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := generateHexKey(jwtSecretBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if cfg.Dispatch.Concurrency <= 0 {
		cfg.Dispatch.Concurrency = 4
		generated["dispatch.concurrency"] = true
	}

	var degraded []string
	if strings.TrimSpace(cfg.Line.ChannelAccessToken) == "" {
		degraded = append(degraded, "line.channel_access_token")
	}
	if strings.TrimSpace(cfg.Line.ChannelSecret) == "" {
		degraded = append(degraded, "line.channel_secret")
	}
	if strings.EqualFold(cfg.Push.Provider, "fcm") && strings.TrimSpace(cfg.Push.FCM.CredentialsFile) == "" {
		degraded = append(degraded, "push.fcm.credentials_file")
	}

	return generated, degraded, nil
}

func generateHexKey(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
