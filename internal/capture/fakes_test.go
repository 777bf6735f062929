package capture

import (
	"context"
	"errors"
	"sync"
)

var testJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xFF, 0xD9}

type fakeStream struct {
	label  string
	chunks chan []byte
	raw    []byte

	mu      sync.Mutex
	stopped bool
	events  *[]string
}

func newFakeStream(label string, events *[]string, pcm ...[]byte) *fakeStream {
	s := &fakeStream{label: label, chunks: make(chan []byte, len(pcm)+1), events: events}
	for _, chunk := range pcm {
		s.raw = append(s.raw, chunk...)
		s.chunks <- chunk
	}
	return s
}

func (s *fakeStream) Label() string         { return s.label }
func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }
func (s *fakeStream) RawPCM() []byte        { return append([]byte(nil), s.raw...) }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.chunks)
		if s.events != nil {
			*s.events = append(*s.events, "stop "+s.label)
		}
	}
	return nil
}

func (s *fakeStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeMic struct {
	streams []*fakeStream
	err     error
	opened  int
	events  *[]string
}

func (m *fakeMic) Open(context.Context) (Stream, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.opened >= len(m.streams) {
		return nil, errors.New("no more fake streams")
	}
	s := m.streams[m.opened]
	m.opened++
	if m.events != nil {
		*m.events = append(*m.events, "open "+s.label)
	}
	return s, nil
}

type fakePreview struct {
	name   string
	frame  []byte
	err    error
	events *[]string

	mu      sync.Mutex
	stopped bool
}

func (p *fakePreview) Label() string { return "fake-cam" }

func (p *fakePreview) Latest(context.Context) ([]byte, error) {
	return p.frame, p.err
}

func (p *fakePreview) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped && p.events != nil {
		*p.events = append(*p.events, "stop "+p.name)
	}
	p.stopped = true
	return nil
}

func (p *fakePreview) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type fakeCamera struct {
	previews []*fakePreview
	err      error
	opened   int
}

func (c *fakeCamera) Open(context.Context) (Preview, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.opened >= len(c.previews) {
		return nil, errors.New("no more fake previews")
	}
	p := c.previews[c.opened]
	c.opened++
	if p.events != nil {
		*p.events = append(*p.events, "open "+p.name)
	}
	return p, nil
}
