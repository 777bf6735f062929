package capture

import (
	"context"
	"sync"
)

// PhotoSession is one live camera preview.
type PhotoSession struct {
	manager *Manager
	preview Preview

	mu      sync.Mutex
	stopped bool
}

// Capture snapshots the latest preview frame. The preview keeps running.
func (s *PhotoSession) Capture(ctx context.Context) (*Artifact, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, ErrSessionStopped
	}

	frame, err := s.preview.Latest(ctx)
	if err != nil {
		return nil, err
	}
	artifact, err := FromBytes(frame, "camera:"+s.preview.Label())
	if err != nil {
		return nil, err
	}
	s.manager.dumper.Dump(artifact)
	return artifact, nil
}

// Stop releases the camera. Stopping twice is a no-op.
func (s *PhotoSession) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.manager.vacate(s)
	err := s.preview.Stop()
	s.manager.logger.Info("camera session stopped")
	return err
}

func (s *PhotoSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// AudioSession is one open microphone. It fans PCM chunks out to
// subscribers and turns the whole recording into a WAV artifact on Stop.
type AudioSession struct {
	manager *Manager
	stream  Stream

	pumped chan struct{}

	mu      sync.Mutex
	subs    map[int]*subscriber
	nextSub int
	stopped bool
}

type subscriber struct {
	ch   chan []byte
	gone chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.gone) })
}

func newAudioSession(m *Manager, stream Stream) *AudioSession {
	s := &AudioSession{
		manager: m,
		stream:  stream,
		pumped:  make(chan struct{}),
		subs:    make(map[int]*subscriber),
	}
	go s.pump()
	return s
}

// Subscribe returns a channel of PCM chunks that closes when the session
// stops, and a cancel func that detaches early.
func (s *AudioSession) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 64)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	sub := &subscriber{ch: ch, gone: make(chan struct{})}
	s.subs[id] = sub
	s.mu.Unlock()

	return ch, func() {
		sub.close()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// pump drains the stream until it closes, then closes every subscriber.
func (s *AudioSession) pump() {
	defer close(s.pumped)

	for chunk := range s.stream.Chunks() {
		s.mu.Lock()
		targets := make([]*subscriber, 0, len(s.subs))
		for _, sub := range s.subs {
			targets = append(targets, sub)
		}
		s.mu.Unlock()

		for _, sub := range targets {
			select {
			case sub.ch <- chunk:
			case <-sub.gone:
			}
		}
	}

	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[int]*subscriber)
	s.mu.Unlock()
	for _, sub := range subs {
		close(sub.ch)
	}
}

// Stop releases the microphone and returns the recording as a WAV artifact.
// Only the first call produces an artifact; later calls return nil, nil.
func (s *AudioSession) Stop() (*Artifact, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.manager.vacate(s)
	err := s.stream.Stop()
	<-s.pumped

	pcm := s.stream.RawPCM()
	artifact := s.manager.wavArtifact(pcm, "microphone:"+s.stream.Label())
	s.manager.logger.Info("microphone session stopped", "pcm_bytes", len(pcm))
	return artifact, err
}

func (s *AudioSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
