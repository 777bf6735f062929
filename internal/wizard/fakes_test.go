package wizard_test

import (
	"context"
	"io"
	"sync"

	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/transcribe"
)

var (
	testJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}
	testPNG  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
)

type fakeStream struct {
	chunks chan []byte
	raw    []byte
	once   sync.Once
}

func (s *fakeStream) Label() string         { return "fake-mic" }
func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }
func (s *fakeStream) RawPCM() []byte        { return s.raw }

func (s *fakeStream) Stop() error {
	s.once.Do(func() { close(s.chunks) })
	return nil
}

// fakeMic opens a fresh stream per Open, each carrying the same PCM.
type fakeMic struct {
	pcm [][]byte
	err error

	mu     sync.Mutex
	opened int
}

func (m *fakeMic) Open(context.Context) (capture.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.opened++
	s := &fakeStream{chunks: make(chan []byte, len(m.pcm)+1)}
	for _, chunk := range m.pcm {
		s.raw = append(s.raw, chunk...)
		s.chunks <- chunk
	}
	return s, nil
}

type fakePreview struct {
	frame []byte

	mu      sync.Mutex
	stopped bool
}

func (p *fakePreview) Label() string { return "fake-camera" }

func (p *fakePreview) Latest(context.Context) ([]byte, error) {
	return append([]byte(nil), p.frame...), nil
}

func (p *fakePreview) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

func (p *fakePreview) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type fakeCamera struct {
	preview *fakePreview
	err     error
}

func (c *fakeCamera) Open(context.Context) (capture.Preview, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.preview, nil
}

// fakeRecognizer replays script once the audio side half-closes.
type fakeRecognizer struct {
	script []transcribe.Result
}

func (r *fakeRecognizer) Open(context.Context) (transcribe.Recognition, error) {
	return &fakeRecognition{script: r.script, results: make(chan transcribe.Result, len(r.script))}, nil
}

type fakeRecognition struct {
	script  []transcribe.Result
	results chan transcribe.Result
	once    sync.Once
}

func (r *fakeRecognition) Send([]byte) error { return nil }

func (r *fakeRecognition) CloseSend() error {
	r.once.Do(func() {
		for _, res := range r.script {
			r.results <- res
		}
		close(r.results)
	})
	return nil
}

func (r *fakeRecognition) Recv() (transcribe.Result, error) {
	res, ok := <-r.results
	if !ok {
		return transcribe.Result{}, io.EOF
	}
	return res, nil
}

func (r *fakeRecognition) Close() error {
	_ = r.CloseSend()
	return nil
}
