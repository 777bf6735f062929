package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rbright/inspector/internal/logging"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	base := strings.TrimSpace(cfg.API.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("api.base_url must not be empty")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("api.base_url must be an absolute URL, got %q", base)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api.base_url scheme must be http or https")
	}
	if parsed.Scheme == "http" && !isLoopback(parsed.Hostname()) {
		warnings = append(warnings, Warning{Message: "api.base_url uses plain http; bearer token is sent unencrypted"})
	}
	if cfg.API.TimeoutMS <= 0 {
		return nil, fmt.Errorf("api.timeout_ms must be > 0")
	}
	if cfg.API.RateLimit < 0 {
		return nil, fmt.Errorf("api.rate_limit must be >= 0")
	}
	if cfg.API.RateLimit > 0 && cfg.API.Burst <= 0 {
		return nil, fmt.Errorf("api.burst must be > 0 when api.rate_limit is set")
	}
	if cfg.Upload.Concurrency <= 0 {
		return nil, fmt.Errorf("upload.concurrency must be > 0")
	}
	if cfg.Counts.Concurrency <= 0 {
		return nil, fmt.Errorf("counts.concurrency must be > 0")
	}
	if len(cfg.Camera.PreviewCmd) == 0 || strings.TrimSpace(cfg.Camera.PreviewCmd[0]) == "" {
		return nil, fmt.Errorf("camera.preview_cmd must not be empty")
	}
	if cfg.Camera.FrameTimeoutMS <= 0 {
		return nil, fmt.Errorf("camera.frame_timeout_ms must be > 0")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	if cfg.Speech.Enable {
		if strings.TrimSpace(cfg.Speech.Endpoint) == "" {
			return nil, fmt.Errorf("speech.endpoint must not be empty when speech.enable=true")
		}
		if strings.TrimSpace(cfg.Speech.LanguageCode) == "" {
			return nil, fmt.Errorf("speech.language_code must not be empty")
		}
		if cfg.Speech.DialTimeoutMS <= 0 {
			return nil, fmt.Errorf("speech.dial_timeout_ms must be > 0")
		}
		if cfg.Speech.FinalizeTimeoutMS <= 0 {
			return nil, fmt.Errorf("speech.finalize_timeout_ms must be > 0")
		}
		if cfg.Speech.Insecure && cfg.Speech.CredentialsFile != "" {
			warnings = append(warnings, Warning{Message: "speech.credentials_file is ignored when speech.insecure=true"})
		}
	}

	return warnings, nil
}

func isLoopback(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
