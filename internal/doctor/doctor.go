// Package doctor runs readiness diagnostics for config, backend, devices and speech.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/config"
	"github.com/rbright/inspector/internal/transcribe"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

const probeTimeout = 2 * time.Second

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkToken(cfg.API))
	checks = append(checks, checkBackend(ctx, cfg.API))
	checks = append(checks, checkAudioSelection(ctx, cfg.Audio))
	checks = append(checks, checkCommand(cfg.Camera.PreviewCmd, "camera.preview_cmd"))
	checks = append(checks, checkSpeech(ctx, cfg.Speech))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

func checkToken(cfg config.APIConfig) Check {
	if strings.TrimSpace(cfg.Token) != "" {
		return Check{Name: "api.token", Pass: true, Message: "bearer token configured"}
	}
	return Check{Name: "api.token", Pass: false, Message: fmt.Sprintf("no token; set api.token or $%s", cfg.TokenEnv)}
}

// checkBackend only proves the base URL answers; any HTTP status counts.
func checkBackend(ctx context.Context, cfg config.APIConfig) Check {
	client, err := api.New(api.Options{BaseURL: cfg.BaseURL, Token: cfg.Token, Timeout: probeTimeout})
	if err != nil {
		return Check{Name: "api.reachable", Pass: false, Message: err.Error()}
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := client.Probe(probeCtx); err != nil {
		return Check{Name: "api.reachable", Pass: false, Message: err.Error()}
	}
	return Check{Name: "api.reachable", Pass: true, Message: fmt.Sprintf("reachable at %s", client.BaseURL())}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
	check.Name = name
	return check
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	choice, err := capture.ChooseInput(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", choice.Device.ID)
	if choice.Warning != "" {
		message = message + " (" + choice.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSpeech opens and immediately closes one recognition stream.
// Disabled speech passes: voice notes still record, just without a transcript.
func checkSpeech(ctx context.Context, cfg config.SpeechConfig) Check {
	if !cfg.Enable {
		return Check{Name: "speech", Pass: true, Message: "disabled; voice notes record without transcript"}
	}
	recognizer := transcribe.NewGoogle(transcribe.GoogleConfig{
		Endpoint:        cfg.Endpoint,
		Insecure:        cfg.Insecure,
		CredentialsFile: cfg.CredentialsFile,
		LanguageCode:    cfg.LanguageCode,
		Model:           cfg.Model,
		DialTimeout:     cfg.DialTimeout(),
	})
	rec, err := recognizer.Open(ctx)
	if err != nil {
		return Check{Name: "speech", Pass: false, Message: err.Error()}
	}
	_ = rec.CloseSend()
	_ = rec.Close()
	return Check{Name: "speech", Pass: true, Message: fmt.Sprintf("stream opened at %s", cfg.Endpoint)}
}
