package transcribe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ch        chan []byte
	cancelled chan struct{}
	once      sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan []byte, 16), cancelled: make(chan struct{})}
}

func (s *fakeSource) Subscribe() (<-chan []byte, func()) {
	return s.ch, func() { s.once.Do(func() { close(s.cancelled) }) }
}

// fakeRecognition replays scripted results once CloseSend is called, or
// immediately when eager is set.
type fakeRecognition struct {
	results chan Result
	script  []Result
	eager   bool
	recvErr error

	mu         sync.Mutex
	sent       [][]byte
	closedSend bool
	closed     bool
	done       chan struct{}
	closeOnce  sync.Once
}

func newFakeRecognition(eager bool, script ...Result) *fakeRecognition {
	r := &fakeRecognition{results: make(chan Result, len(script)+1), script: script, eager: eager, done: make(chan struct{})}
	if eager {
		r.flush()
	}
	return r
}

func (r *fakeRecognition) flush() {
	for _, res := range r.script {
		r.results <- res
	}
	close(r.results)
}

func (r *fakeRecognition) Send(pcm []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, pcm)
	return nil
}

func (r *fakeRecognition) CloseSend() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closedSend {
		r.closedSend = true
		if !r.eager {
			r.flush()
		}
	}
	return nil
}

func (r *fakeRecognition) Recv() (Result, error) {
	select {
	case res, ok := <-r.results:
		if !ok {
			if r.recvErr != nil {
				return Result{}, r.recvErr
			}
			return Result{}, io.EOF
		}
		return res, nil
	case <-r.done:
		return Result{}, errors.New("closed")
	}
}

func (r *fakeRecognition) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.done)
	})
	return nil
}

func (r *fakeRecognition) sentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fakeRecognizer struct {
	rec *fakeRecognition
	err error
}

func (f *fakeRecognizer) Open(context.Context) (Recognition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func collect(t *testing.T, ch <-chan State) []State {
	t.Helper()
	var states []State
	timeout := time.After(5 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return states
			}
			states = append(states, st)
		case <-timeout:
			t.Fatal("transcript sequence did not close")
		}
	}
}

func TestAttachReplacesPartialsAndEmitsOneFinal(t *testing.T) {
	rec := newFakeRecognition(false,
		Result{Partial: "cracked"},
		Result{Partial: "cracked  column"},
		Result{Finals: []string{"Cracked column", "near base."}},
		Result{Partial: "ignored"},
		Result{Finals: []string{"also ignored"}},
	)
	var logs bytes.Buffer
	ch := New(&fakeRecognizer{rec: rec}, Options{Logger: slog.New(slog.NewJSONHandler(&logs, nil))})
	src := newFakeSource()

	states, err := ch.Attach(context.Background(), src)
	require.NoError(t, err)

	src.ch <- []byte{1, 2}
	src.ch <- []byte{3, 4}
	close(src.ch)

	got := collect(t, states)
	require.NotContains(t, logs.String(), "not transcribed")
	require.Equal(t, []State{
		{Text: "cracked"},
		{Text: "cracked column"},
		{Text: "Cracked column near base.", IsFinal: true},
	}, got)
	require.Equal(t, 2, rec.sentCount())
}

func TestAttachPromotesTrailingPartialOnce(t *testing.T) {
	rec := newFakeRecognition(false, Result{Partial: "rust on flange"})
	ch := New(&fakeRecognizer{rec: rec}, Options{})
	src := newFakeSource()

	states, err := ch.Attach(context.Background(), src)
	require.NoError(t, err)
	close(src.ch)

	require.Equal(t, []State{
		{Text: "rust on flange"},
		{Text: "rust on flange", IsFinal: true},
	}, collect(t, states))
}

func TestAttachPromotesPartialWhenStreamFails(t *testing.T) {
	rec := newFakeRecognition(false, Result{Partial: "leak"})
	rec.recvErr = errors.New("backend reset")
	ch := New(&fakeRecognizer{rec: rec}, Options{})
	src := newFakeSource()

	states, err := ch.Attach(context.Background(), src)
	require.NoError(t, err)
	close(src.ch)

	got := collect(t, states)
	require.Len(t, got, 2)
	require.True(t, got[1].IsFinal)
}

func TestFinalMidStreamStopsForwardingAudio(t *testing.T) {
	rec := newFakeRecognition(true, Result{Finals: []string{"done"}})
	var logs bytes.Buffer
	ch := New(&fakeRecognizer{rec: rec}, Options{Logger: slog.New(slog.NewJSONHandler(&logs, nil))})
	src := newFakeSource()

	states, err := ch.Attach(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, []State{{Text: "done", IsFinal: true}}, collect(t, states))
	require.Contains(t, logs.String(), "later audio is recorded but not transcribed")

	select {
	case <-src.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("source subscription was not cancelled")
	}
}

func TestAttachDegradedModeWhenUnavailable(t *testing.T) {
	for name, recognizer := range map[string]Recognizer{
		"not configured": nil,
		"open fails":     &fakeRecognizer{err: errors.New("dial refused")},
	} {
		t.Run(name, func(t *testing.T) {
			ch := New(recognizer, Options{})
			states, err := ch.Attach(context.Background(), newFakeSource())
			require.NoError(t, err)
			_, ok := <-states
			require.False(t, ok)
		})
	}
	require.False(t, New(nil, Options{}).Available())
}

func TestAttachTwiceWhileActiveFails(t *testing.T) {
	rec := newFakeRecognition(false)
	ch := New(&fakeRecognizer{rec: rec}, Options{})
	src := newFakeSource()

	_, err := ch.Attach(context.Background(), src)
	require.NoError(t, err)
	_, err = ch.Attach(context.Background(), newFakeSource())
	require.ErrorIs(t, err, ErrAttached)

	ch.Detach()
	ch.Detach()
}

func TestDetachSuppressesPromotion(t *testing.T) {
	rec := &fakeRecognition{results: make(chan Result, 1), eager: true, done: make(chan struct{})}
	rec.results <- Result{Partial: "half a sentence"}
	ch := New(&fakeRecognizer{rec: rec}, Options{})
	src := newFakeSource()

	states, err := ch.Attach(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, State{Text: "half a sentence"}, <-states)

	ch.Detach()
	require.Empty(t, collect(t, states))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.True(t, rec.closed)
}

func TestFinalizeTimeoutClosesStalledStream(t *testing.T) {
	rec := &fakeRecognition{results: make(chan Result), done: make(chan struct{}), eager: true}
	ch := New(&fakeRecognizer{rec: rec}, Options{FinalizeTimeout: 20 * time.Millisecond})
	src := newFakeSource()

	states, err := ch.Attach(context.Background(), src)
	require.NoError(t, err)
	close(src.ch)

	require.Empty(t, collect(t, states))
}

func TestSlotIgnoresDuplicatePartials(t *testing.T) {
	s := newSlot()
	_, ok := s.apply(Result{Partial: "a"})
	require.True(t, ok)
	_, ok = s.apply(Result{Partial: " a "})
	require.False(t, ok)
	_, ok = s.apply(Result{})
	require.False(t, ok)

	final, ok := s.apply(Result{Finals: []string{"a", " ", "b"}})
	require.True(t, ok)
	require.Equal(t, State{Text: "a b", IsFinal: true}, final)

	_, ok = s.promote()
	require.False(t, ok)
}
