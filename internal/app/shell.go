package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/cli"
	"github.com/rbright/inspector/internal/fsm"
	"github.com/rbright/inspector/internal/wizard"
)

// lineReader yields one trimmed command line per call and io.EOF at the end.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineReader uses liner on an interactive terminal and a plain scanner
// otherwise, so scripted input works the same as typed input.
func (r Runner) newLineReader() lineReader {
	if r.Stdin == nil && isTerminal(os.Stdin.Fd()) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &linerReader{state: state}
	}
	in := r.Stdin
	if in == nil {
		in = os.Stdin
	}
	return &scanReader{scanner: bufio.NewScanner(in), out: r.Stdout}
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type linerReader struct {
	state *liner.State
}

func (l *linerReader) ReadLine(prompt string) (string, error) {
	line, err := l.state.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	line = strings.TrimSpace(line)
	if line != "" {
		l.state.AppendHistory(line)
	}
	return line, nil
}

func (l *linerReader) Close() error { return l.state.Close() }

type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (s *scanReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.scanner.Text()), nil
}

func (s *scanReader) Close() error { return nil }

// splitCommand returns the lowercased verb and the untouched remainder.
func splitCommand(line string) (string, string) {
	verb, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}

const wizardHelp = `step 1  photo PATH | camera | snap | rm N | next
step 2  name TEXT | next | back
step 3  text TEXT | voice | finish | back
any     status | cancel | reopen | help | quit
`

func (r Runner) commandAssetNew(ctx context.Context, env *environment, client *api.Client, parsed cli.Parsed) int {
	devices, channel, cleanup := r.devices(env)
	defer cleanup()

	w, err := wizard.New(wizard.Options{
		ProjectID:         parsed.ProjectID,
		FolderID:          parsed.FolderID,
		Backend:           client,
		Capture:           devices,
		Transcriber:       channel,
		Notifier:          env.notifier,
		Logger:            env.logger,
		UploadConcurrency: env.cfg.Upload.Concurrency,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer w.Close()

	reader := r.newLineReader()
	defer func() { _ = reader.Close() }()

	fmt.Fprint(r.Stdout, wizardHelp)
	for {
		state := w.State()
		line, err := reader.ReadLine(fmt.Sprintf("asset[%d]> ", state.Step()))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: read input: %v\n", err)
			return 1
		}
		if line == "" {
			continue
		}

		verb, arg := splitCommand(line)
		switch verb {
		case "quit", "exit", "q":
			return 0
		case "help", "?":
			fmt.Fprint(r.Stdout, wizardHelp)
		case "status":
			fmt.Fprint(r.Stdout, renderDraft(string(state), state.Step(), w.Draft(), w.Recording()))
		case "photo":
			err = w.AddPhotoFile(arg)
		case "camera":
			err = w.StartCamera(ctx)
			if err == nil {
				fmt.Fprintln(r.Stdout, "camera ready; type snap to capture")
			}
		case "snap":
			var shot *capture.Artifact
			shot, err = w.Snap(ctx)
			if err == nil {
				fmt.Fprintf(r.Stdout, "captured photo %d (%d bytes)\n", len(w.Photos()), shot.Size())
			}
		case "rm":
			n, convErr := strconv.Atoi(arg)
			if convErr != nil {
				err = fmt.Errorf("rm: %q is not a photo number", arg)
				break
			}
			err = w.RemovePhoto(n - 1)
		case "next":
			switch state {
			case fsm.StatePhotoIntake:
				err = w.ConfirmPhotos()
			case fsm.StateNaming:
				err = w.ConfirmName()
			default:
				err = fmt.Errorf("%w: next during %s", wizard.ErrWrongStep, state)
			}
		case "name":
			err = w.SetName(arg)
		case "text":
			err = w.SetWrittenText(arg)
		case "voice":
			var recording bool
			recording, err = w.ToggleVoice(ctx)
			if err == nil && !recording {
				fmt.Fprintf(r.Stdout, "transcript: %s\n", w.Draft().TranscribedText)
			}
		case "finish":
			var asset api.Asset
			asset, err = w.Finish(ctx)
			if err == nil {
				fmt.Fprintf(r.Stdout, "%s\t%s\n", asset.ID, asset.Name)
			}
		case "back":
			err = w.Back(ctx)
		case "cancel":
			err = w.Cancel(ctx)
			if err == nil {
				fmt.Fprintln(r.Stdout, "draft discarded; type reopen to start over")
			}
		case "reopen":
			err = w.Reopen()
		default:
			err = fmt.Errorf("unknown command %q; type help", verb)
		}
		r.report(err)
	}
	return 0
}

const editHelp = `name TEXT | text TEXT | transcript TEXT | voice | show | save | quit
`

func (r Runner) commandAssetEdit(ctx context.Context, env *environment, client *api.Client, assetID string) int {
	devices, channel, cleanup := r.devices(env)
	defer cleanup()

	session, err := wizard.LoadEditSession(ctx, assetID, wizard.EditOptions{
		Backend:     client,
		Capture:     devices,
		Transcriber: channel,
		Notifier:    env.notifier,
		Logger:      env.logger,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer session.Close()

	reader := r.newLineReader()
	defer func() { _ = reader.Close() }()

	fmt.Fprint(r.Stdout, renderAsset(session.Asset()))
	fmt.Fprint(r.Stdout, editHelp)
	for {
		line, err := reader.ReadLine("edit> ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: read input: %v\n", err)
			return 1
		}
		if line == "" {
			continue
		}

		verb, arg := splitCommand(line)
		switch verb {
		case "quit", "exit", "q":
			return 0
		case "help", "?":
			fmt.Fprint(r.Stdout, editHelp)
		case "show":
			current := session.Asset()
			current.Name = session.Name()
			current.TextDescription = session.WrittenText()
			current.VoiceToText = session.TranscribedText()
			fmt.Fprint(r.Stdout, renderAsset(current))
		case "name":
			err = session.SetName(arg)
		case "text":
			err = session.SetWrittenText(arg)
		case "transcript":
			err = session.SetTranscribedText(arg)
		case "voice":
			var recording bool
			recording, err = session.ToggleVoice(ctx)
			if err == nil && !recording {
				fmt.Fprintf(r.Stdout, "transcript: %s\n", session.TranscribedText())
			}
		case "save":
			var asset api.Asset
			asset, err = session.Save(ctx)
			if err == nil {
				fmt.Fprintf(r.Stdout, "%s\t%s\n", asset.ID, asset.Name)
			}
		default:
			err = fmt.Errorf("unknown command %q; type help", verb)
		}
		r.report(err)
	}
	return 0
}

// report prints shell errors. Guard failures were already surfaced through
// the notifier.
func (r Runner) report(err error) {
	if err == nil || errors.Is(err, wizard.ErrValidation) {
		return
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
}
