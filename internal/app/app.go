// Package app wires config, logging and the domain packages behind each
// inspector command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/cli"
	"github.com/rbright/inspector/internal/config"
	"github.com/rbright/inspector/internal/doctor"
	"github.com/rbright/inspector/internal/hierarchy"
	"github.com/rbright/inspector/internal/logging"
	"github.com/rbright/inspector/internal/notify"
	"github.com/rbright/inspector/internal/search"
	"github.com/rbright/inspector/internal/transcribe"
	"github.com/rbright/inspector/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	// Stdin feeds the interactive shells. Nil means os.Stdin.
	Stdin  io.Reader
	Logger *slog.Logger

	// Device and speech overrides; nil uses the configured backends.
	Camera     capture.Camera
	Microphone capture.Microphone
	Recognizer transcribe.Recognizer
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("inspector"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, parsed.Help)
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logger := r.Logger
	logPath := ""
	if logger == nil {
		logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
			return 1
		}
		defer func() { _ = logRuntime.Close() }()
		logger = logRuntime.Logger
		logPath = logRuntime.Path
	}

	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logPath,
	)

	env := &environment{
		cfg:      cfgLoaded.Config,
		logger:   logger,
		notifier: notify.NewTerminal(r.Stderr),
	}

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandFolders:
		return r.withClient(env, func(client *api.Client) int { return r.commandFolders(ctx, env, client, parsed) })
	case cli.CommandTrail:
		return r.withClient(env, func(client *api.Client) int { return r.commandTrail(ctx, env, client, parsed.FolderID) })
	case cli.CommandFolderCreate:
		return r.withClient(env, func(client *api.Client) int { return r.commandFolderCreate(ctx, env, client, parsed) })
	case cli.CommandSearch:
		return r.withClient(env, func(client *api.Client) int { return r.commandSearch(ctx, env, client, parsed) })
	case cli.CommandAssetNew:
		return r.withClient(env, func(client *api.Client) int { return r.commandAssetNew(ctx, env, client, parsed) })
	case cli.CommandAssetEdit:
		return r.withClient(env, func(client *api.Client) int { return r.commandAssetEdit(ctx, env, client, parsed.AssetID) })
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// environment is the per-invocation runtime shared by commands.
type environment struct {
	cfg      config.Config
	logger   *slog.Logger
	notifier notify.Notifier
}

func (r Runner) withClient(env *environment, run func(*api.Client) int) int {
	client, err := api.New(api.Options{
		BaseURL:   env.cfg.API.BaseURL,
		Token:     env.cfg.API.Token,
		Timeout:   env.cfg.API.Timeout(),
		RateLimit: env.cfg.API.RateLimit,
		Burst:     env.cfg.API.Burst,
		UserAgent: version.UserAgent(),
		Logger:    env.logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(env.cfg.API.Token) == "" {
		fmt.Fprintf(r.Stderr, "warning: no api token; set api.token or $%s\n", env.cfg.API.TokenEnv)
	}
	return run(client)
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := capture.ListInputs(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}
	fmt.Fprintln(r.Stdout, renderDevices(devices))
	return 0
}

func (r Runner) commandFolders(ctx context.Context, env *environment, client *api.Client, parsed cli.Parsed) int {
	resolver := hierarchy.New(client, hierarchy.Options{Concurrency: env.cfg.Counts.Concurrency, Logger: env.logger})
	view, err := resolver.LoadView(ctx, parsed.ProjectID, parsed.FolderID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, renderView(view))
	return 0
}

func (r Runner) commandTrail(ctx context.Context, env *environment, client *api.Client, folderID string) int {
	resolver := hierarchy.New(client, hierarchy.Options{Concurrency: env.cfg.Counts.Concurrency, Logger: env.logger})
	trail, err := resolver.ResolveTrailByID(ctx, folderID)
	if err != nil && !errors.Is(err, hierarchy.ErrPartial) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: breadcrumb truncated: %v\n", err)
	}
	fmt.Fprintln(r.Stdout, renderTrail(trail))
	return 0
}

func (r Runner) commandFolderCreate(ctx context.Context, env *environment, client *api.Client, parsed cli.Parsed) int {
	company := parsed.CompanyID
	if company == "" {
		company = env.cfg.API.CompanyID
	}
	resolver := hierarchy.New(client, hierarchy.Options{Logger: env.logger})
	folder, err := resolver.CreateFolder(ctx, hierarchy.FolderRequest{
		Name:      parsed.Name,
		ProjectID: parsed.ProjectID,
		CompanyID: company,
		Parent:    parsed.FolderID,
	})
	if err != nil {
		env.notifier.Notify(notify.LevelError, notify.MsgFolderCreateFailed)
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	env.notifier.Notify(notify.LevelSuccess, notify.MsgFolderCreated)
	fmt.Fprintf(r.Stdout, "%s\t%s\n", folder.ID, folder.Name)
	return 0
}

func (r Runner) commandSearch(ctx context.Context, env *environment, client *api.Client, parsed cli.Parsed) int {
	loc, err := search.ParseLocation(parsed.At)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}
	box := search.NewBox(search.NewResolver(client, env.logger), env.notifier)
	box.SetQuery(parsed.Query)
	target, err := box.Submit(ctx, loc)
	if err != nil {
		if !errors.Is(err, search.ErrNoResult) {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return 1
	}
	fmt.Fprintf(r.Stdout, "%s\t%s\t%s\n", target.Kind, target.Name, target.Location.Path())
	return 0
}

// devices builds the capture manager and transcription channel for a shell.
func (r Runner) devices(env *environment) (*capture.Manager, *transcribe.Channel, func()) {
	cfg := env.cfg
	camera := r.Camera
	if camera == nil {
		camera = capture.ExecCamera{Command: cfg.Camera.PreviewCmd, FrameTimeout: cfg.Camera.FrameTimeout()}
	}
	mic := r.Microphone
	if mic == nil {
		mic = capture.PulseMicrophone{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: env.logger}
	}
	dumper, err := capture.NewDumper(cfg.Debug.ArtifactDump, env.logger)
	if err != nil {
		env.logger.Warn("artifact dump disabled", "error", err.Error())
	}
	manager := capture.NewManager(capture.Options{Camera: camera, Microphone: mic, Dumper: dumper, Logger: env.logger})

	cleanup := []func(){manager.Close}
	recognizer := r.Recognizer
	if recognizer == nil && cfg.Speech.Enable {
		google := transcribe.GoogleConfig{
			Endpoint:             cfg.Speech.Endpoint,
			Insecure:             cfg.Speech.Insecure,
			CredentialsFile:      cfg.Speech.CredentialsFile,
			LanguageCode:         cfg.Speech.LanguageCode,
			Model:                cfg.Speech.Model,
			AutomaticPunctuation: cfg.Speech.AutomaticPunctuation,
			DialTimeout:          cfg.Speech.DialTimeout(),
			Logger:               env.logger,
		}
		if cfg.Debug.SpeechDump {
			if f, err := openSpeechDump(); err != nil {
				env.logger.Warn("speech dump disabled", "error", err.Error())
			} else {
				google.ResponseDump = f
				cleanup = append(cleanup, func() { _ = f.Close() })
			}
		}
		recognizer = transcribe.NewGoogle(google)
	}
	channel := transcribe.New(recognizer, transcribe.Options{FinalizeTimeout: cfg.Speech.FinalizeTimeout(), Logger: env.logger})
	cleanup = append(cleanup, channel.Detach)

	return manager, channel, func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}
}

func openSpeechDump() (*os.File, error) {
	stateDir, err := logging.StateDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(stateDir, "inspector", "debug")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("speech-%s.jsonl", time.Now().UTC().Format("20060102-150405"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}
