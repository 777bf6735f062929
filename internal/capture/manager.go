package capture

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rbright/inspector/internal/logging"
)

var errNoDevice = errors.New("no device configured")

// Options wires device backends into a Manager. Nil devices fail acquisition.
type Options struct {
	Camera     Camera
	Microphone Microphone
	Dumper     *Dumper
	Logger     *slog.Logger
}

// Manager owns at most one session per device class. Starting a session of
// an occupied class stops the previous one before acquiring again.
type Manager struct {
	camera Camera
	mic    Microphone
	dumper *Dumper
	logger *slog.Logger

	acquire sync.Mutex

	mu     sync.Mutex
	photo  *PhotoSession
	audio  *AudioSession
	closed bool
}

func NewManager(opts Options) *Manager {
	return &Manager{
		camera: opts.Camera,
		mic:    opts.Microphone,
		dumper: opts.Dumper,
		logger: logging.OrDiscard(opts.Logger),
	}
}

// StartPhoto opens a live camera preview.
func (m *Manager) StartPhoto(ctx context.Context) (*PhotoSession, error) {
	m.acquire.Lock()
	defer m.acquire.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	prior := m.photo
	m.photo = nil
	m.mu.Unlock()
	if prior != nil {
		_ = prior.Stop()
	}

	if m.camera == nil {
		return nil, &DeviceError{Class: ClassCamera, Err: errNoDevice}
	}
	preview, err := m.camera.Open(ctx)
	if err != nil {
		m.logger.Warn("camera acquisition failed", "error", err.Error())
		return nil, &DeviceError{Class: ClassCamera, Err: err}
	}

	session := &PhotoSession{manager: m, preview: preview}
	if !m.install(ClassCamera, session) {
		_ = preview.Stop()
		return nil, ErrManagerClosed
	}
	m.logger.Info("camera session started", "device", preview.Label())
	return session, nil
}

// StartAudio opens the microphone and starts buffering PCM.
func (m *Manager) StartAudio(ctx context.Context) (*AudioSession, error) {
	m.acquire.Lock()
	defer m.acquire.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	prior := m.audio
	m.audio = nil
	m.mu.Unlock()
	if prior != nil {
		if artifact, _ := prior.Stop(); artifact != nil {
			artifact.Release()
		}
	}

	if m.mic == nil {
		return nil, &DeviceError{Class: ClassMicrophone, Err: errNoDevice}
	}
	stream, err := m.mic.Open(ctx)
	if err != nil {
		m.logger.Warn("microphone acquisition failed", "error", err.Error())
		return nil, &DeviceError{Class: ClassMicrophone, Err: err}
	}

	session := newAudioSession(m, stream)
	if !m.install(ClassMicrophone, session) {
		_, _ = session.Stop()
		return nil, ErrManagerClosed
	}
	m.logger.Info("microphone session started", "device", stream.Label())
	return session, nil
}

// Active reports whether a session of class is open.
func (m *Manager) Active(class Class) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch class {
	case ClassCamera:
		return m.photo != nil
	case ClassMicrophone:
		return m.audio != nil
	default:
		return false
	}
}

// Close force-releases every open session. Later starts fail.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	photo, audio := m.photo, m.audio
	m.photo, m.audio = nil, nil
	m.mu.Unlock()

	if photo != nil {
		_ = photo.Stop()
	}
	if audio != nil {
		if artifact, _ := audio.Stop(); artifact != nil {
			artifact.Release()
		}
	}
}

func (m *Manager) install(class Class, session any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	switch class {
	case ClassCamera:
		m.photo = session.(*PhotoSession)
	case ClassMicrophone:
		m.audio = session.(*AudioSession)
	}
	return true
}

// vacate clears the slot if it still holds session.
func (m *Manager) vacate(session any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch s := session.(type) {
	case *PhotoSession:
		if m.photo == s {
			m.photo = nil
		}
	case *AudioSession:
		if m.audio == s {
			m.audio = nil
		}
	}
}

func (m *Manager) wavArtifact(pcm []byte, source string) *Artifact {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	_ = writeWAV(&buf, pcm, SampleRate, 1)
	artifact := newArtifact(KindAudio, "audio/wav", source, buf.Bytes())
	m.dumper.Dump(artifact)
	return artifact
}
