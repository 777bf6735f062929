package wizard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/notify"
	"github.com/rbright/inspector/internal/transcribe"
)

// recorder owns one voice note at a time plus its live transcript.
type recorder struct {
	devices  *capture.Manager
	channel  *transcribe.Channel
	notifier notify.Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	active     *recording
	generation int
	transcript string
	closed     bool
}

type recording struct {
	session    *capture.AudioSession
	generation int
	done       chan struct{}
}

func (r *recorder) recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *recorder) text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript
}

func (r *recorder) setText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.transcript = text
}

// start opens the microphone, clears the transcript and attaches live
// transcription when available.
func (r *recorder) start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.active != nil {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	session, err := r.devices.StartAudio(ctx)
	if err != nil {
		if errors.Is(err, capture.ErrDeviceAccessDenied) {
			r.notifier.Notify(notify.LevelError, notify.MsgMicrophoneDenied)
		}
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if artifact, _ := session.Stop(); artifact != nil {
			artifact.Release()
		}
		return ErrClosed
	}
	r.generation++
	r.transcript = ""
	rec := &recording{session: session, generation: r.generation, done: make(chan struct{})}
	r.active = rec
	r.mu.Unlock()

	states, err := r.channel.Attach(ctx, session)
	if err != nil {
		r.logger.Warn("transcription attach failed", "error", err.Error())
		close(rec.done)
	} else {
		go r.follow(rec, states)
	}

	r.notifier.Notify(notify.LevelInfo, notify.MsgRecording)
	return nil
}

// follow copies transcript states into the slot while rec is the latest
// recording. Each state replaces the text.
func (r *recorder) follow(rec *recording, states <-chan transcribe.State) {
	defer close(rec.done)
	for state := range states {
		r.mu.Lock()
		if !r.closed && r.generation == rec.generation {
			r.transcript = state.Text
		}
		r.mu.Unlock()
	}
}

// stop releases the microphone and returns the recording. It waits for the
// transcript to settle unless ctx ends first.
func (r *recorder) stop(ctx context.Context) (*capture.Artifact, error) {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()
	if rec == nil {
		return nil, nil
	}

	artifact, err := rec.session.Stop()
	select {
	case <-rec.done:
	case <-ctx.Done():
	}
	r.channel.Detach()
	<-rec.done
	r.notifier.Notify(notify.LevelInfo, notify.MsgRecordingStopped)
	return artifact, err
}

// reset clears the transcript for a fresh draft.
func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.transcript = ""
}

// close abandons any recording and refuses new ones.
func (r *recorder) close() {
	r.mu.Lock()
	r.closed = true
	rec := r.active
	r.active = nil
	r.mu.Unlock()

	r.channel.Detach()
	if rec == nil {
		return
	}
	if artifact, _ := rec.session.Stop(); artifact != nil {
		artifact.Release()
	}
	<-rec.done
}
