// Package transcribe attaches streaming speech recognition to a microphone
// session and reduces its results to a single replaceable transcript.
package transcribe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/inspector/internal/logging"
)

// State is the current transcript. Each emission replaces the previous one.
type State struct {
	Text    string
	IsFinal bool
}

// Source supplies PCM chunks until the capture session stops.
type Source interface {
	Subscribe() (<-chan []byte, func())
}

// Recognizer opens one streaming recognition pass.
type Recognizer interface {
	Open(ctx context.Context) (Recognition, error)
}

// Recognition is one open recognition stream.
type Recognition interface {
	Send(pcm []byte) error
	CloseSend() error
	// Recv returns io.EOF once the backend has sent its last result.
	Recv() (Result, error)
	Close() error
}

// Result is one backend response: finalized segments plus the current
// unstable hypothesis.
type Result struct {
	Finals  []string
	Partial string
}

var ErrAttached = errors.New("transcription already attached")

// Options tunes a Channel.
type Options struct {
	// FinalizeTimeout bounds the wait for trailing results after the
	// source stops.
	FinalizeTimeout time.Duration
	Logger          *slog.Logger
}

// Channel drives at most one recognition pass at a time.
type Channel struct {
	recognizer Recognizer
	finalize   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	current *pass
}

type pass struct {
	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
}

// New returns a Channel. A nil recognizer yields degraded mode: every
// Attach returns an already-closed sequence.
func New(recognizer Recognizer, opts Options) *Channel {
	finalize := opts.FinalizeTimeout
	if finalize <= 0 {
		finalize = 5 * time.Second
	}
	return &Channel{
		recognizer: recognizer,
		finalize:   finalize,
		logger:     logging.OrDiscard(opts.Logger),
	}
}

// Available reports whether recognition is configured at all.
func (c *Channel) Available() bool { return c.recognizer != nil }

// Attach starts recognizing src. The returned sequence ends after exactly one
// final State, or immediately when recognition is unavailable.
func (c *Channel) Attach(ctx context.Context, src Source) (<-chan State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		select {
		case <-c.current.done:
			c.current = nil
		default:
			return nil, ErrAttached
		}
	}

	out := make(chan State, 16)
	if c.recognizer == nil {
		close(out)
		return out, nil
	}

	passCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rec, err := c.recognizer.Open(passCtx)
	if err != nil {
		cancel()
		c.logger.Warn("speech recognition unavailable; continuing without transcript", "error", err.Error())
		close(out)
		return out, nil
	}

	pcm, unsubscribe := src.Subscribe()
	p := &pass{cancel: cancel, unsubscribe: unsubscribe, done: make(chan struct{})}
	c.current = p

	recvDone := make(chan struct{})
	var halfClosed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer unsubscribe()
		c.send(passCtx, rec, pcm, recvDone, &halfClosed)
	}()
	go func() {
		defer wg.Done()
		c.receive(passCtx, rec, out, recvDone, &halfClosed)
		// Nothing is read after the final, so stop forwarding audio too.
		cancel()
	}()
	go func() {
		wg.Wait()
		cancel()
		close(p.done)
	}()
	return out, nil
}

// Detach abandons the current pass and waits for its goroutines to exit.
// The sequence still closes; no final is promoted after Detach.
func (c *Channel) Detach() {
	c.mu.Lock()
	p := c.current
	c.current = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	p.unsubscribe()
	p.cancel()
	<-p.done
}

// send forwards PCM until the source closes, half-closes the stream, then
// gives the backend FinalizeTimeout to flush before tearing it down.
func (c *Channel) send(ctx context.Context, rec Recognition, pcm <-chan []byte, recvDone <-chan struct{}, halfClosed *atomic.Bool) {
	sendFailed := false
forward:
	for {
		select {
		case chunk, ok := <-pcm:
			if !ok {
				break forward
			}
			if sendFailed {
				continue
			}
			if err := rec.Send(chunk); err != nil {
				c.logger.Warn("speech send failed", "error", err.Error())
				sendFailed = true
			}
		case <-ctx.Done():
			break forward
		}
	}
	halfClosed.Store(true)
	_ = rec.CloseSend()

	timer := time.NewTimer(c.finalize)
	defer timer.Stop()
	select {
	case <-recvDone:
	case <-ctx.Done():
	case <-timer.C:
		c.logger.Warn("speech finalize timed out", "timeout_ms", c.finalize.Milliseconds())
	}
	_ = rec.Close()
}

func (c *Channel) receive(ctx context.Context, rec Recognition, out chan<- State, recvDone chan<- struct{}, halfClosed *atomic.Bool) {
	defer close(out)
	defer close(recvDone)

	slot := newSlot()
	for {
		result, err := rec.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				c.logger.Warn("speech stream ended", "error", err.Error())
			}
			break
		}
		if state, ok := slot.apply(result); ok {
			if state.IsFinal && !halfClosed.Load() {
				c.logger.Info("speech finalized before recording ended; later audio is recorded but not transcribed")
			}
			if !emit(ctx, out, state) || state.IsFinal {
				break
			}
		}
	}

	if ctx.Err() != nil {
		return
	}
	if state, ok := slot.promote(); ok {
		emit(ctx, out, state)
	}
}

func emit(ctx context.Context, out chan<- State, state State) bool {
	select {
	case out <- state:
		return true
	case <-ctx.Done():
		return false
	}
}
