package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/rbright/inspector/internal/logging"
)

const (
	SampleRate = 16000

	// 20ms of 16 kHz mono s16le.
	pcmChunkBytes = 640
)

// InputDevice is one Pulse source.
type InputDevice struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// InputChoice is the resolved source and an optional fallback warning.
type InputChoice struct {
	Device   InputDevice
	Warning  string
	Fallback bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("inspector"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListInputs returns the Pulse sources with default and availability flags.
func ListInputs(_ context.Context) ([]InputDevice, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	inputs := make([]InputDevice, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		inputs = append(inputs, InputDevice{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceState(info.State),
			Available:   activePortAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultSource.ID(),
		})
	}
	return inputs, nil
}

// ChooseInput resolves audio.input and audio.fallback against live sources.
func ChooseInput(ctx context.Context, input, fallback string) (InputChoice, error) {
	inputs, err := ListInputs(ctx)
	if err != nil {
		return InputChoice{}, err
	}
	return chooseInput(inputs, input, fallback)
}

func chooseInput(inputs []InputDevice, input, fallback string) (InputChoice, error) {
	if len(inputs) == 0 {
		return InputChoice{}, errors.New("no audio input devices found")
	}

	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	primary, err := pickInput(inputs, input)
	if err != nil {
		return InputChoice{}, err
	}
	if primary.Available && !primary.Muted {
		return InputChoice{Device: primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	alternate, err := pickInput(inputs, fallback)
	if err != nil {
		return InputChoice{}, fmt.Errorf("input %q is %s and fallback failed: %w", primary.ID, reason, err)
	}
	switch {
	case !alternate.Available:
		return InputChoice{}, fmt.Errorf("audio fallback %q is not available", alternate.ID)
	case alternate.Muted:
		return InputChoice{}, fmt.Errorf("audio fallback %q is muted", alternate.ID)
	}

	return InputChoice{
		Device:   alternate,
		Warning:  fmt.Sprintf("audio input %q is %s; using %q", primary.ID, reason, alternate.ID),
		Fallback: alternate.ID != primary.ID,
	}, nil
}

// pickInput returns the default source for "" or "default", else the first match.
func pickInput(inputs []InputDevice, term string) (InputDevice, error) {
	if term == "" || term == "default" {
		for _, in := range inputs {
			if in.Default {
				return in, nil
			}
		}
		return InputDevice{}, errors.New("default audio source is unavailable")
	}
	for _, in := range inputs {
		if inputMatches(in, term) {
			return in, nil
		}
	}
	return InputDevice{}, fmt.Errorf("audio input %q did not match any device", term)
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func inputMatches(in InputDevice, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(in.ID), term) ||
		strings.Contains(strings.ToLower(in.Description), term)
}

// PulseMicrophone opens record streams on the configured Pulse source.
type PulseMicrophone struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

func (m PulseMicrophone) Open(ctx context.Context) (Stream, error) {
	choice, err := ChooseInput(ctx, m.Input, m.Fallback)
	if err != nil {
		return nil, err
	}
	if choice.Warning != "" {
		logging.OrDiscard(m.Logger).Warn(choice.Warning)
	}
	return openPulseStream(choice.Device)
}

// pulseStream buffers a Pulse record stream into fixed-size chunks and keeps
// the full recording for the artifact.
type pulseStream struct {
	device InputDevice

	client *pulse.Client
	record *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	raw     []byte
	stopped bool

	inflight sync.WaitGroup
}

func openPulseStream(device InputDevice) (*pulseStream, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	s := &pulseStream{
		device: device,
		client: client,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}

	record, err := client.NewRecord(
		pulse.NewWriter(writerFunc(s.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(pcmChunkBytes),
		pulse.RecordMediaName("inspector voice note"),
	)
	if err != nil {
		_ = s.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	s.record = record
	record.Start()
	return s, nil
}

func (s *pulseStream) Label() string {
	if s.device.Description == "" {
		return s.device.ID
	}
	return fmt.Sprintf("%s (%s)", s.device.Description, s.device.ID)
}

func (s *pulseStream) Chunks() <-chan []byte { return s.chunks }

func (s *pulseStream) RawPCM() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.raw...)
}

// Stop releases the Pulse handles, flushes the partial chunk and closes
// Chunks exactly once.
func (s *pulseStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	if s.record != nil {
		s.record.Stop()
		s.record.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	s.inflight.Wait()

	s.mu.Lock()
	tail := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(tail) > 0 {
		select {
		case s.chunks <- tail:
		default:
		}
	}
	close(s.chunks)
	return nil
}

func (s *pulseStream) write(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same lock as stopped so Stop's Wait cannot race it.
	s.inflight.Add(1)
	defer s.inflight.Done()

	s.raw = append(s.raw, buffer...)
	s.pending = append(s.pending, buffer...)
	var ready [][]byte
	for len(s.pending) >= pcmChunkBytes {
		ready = append(ready, append([]byte(nil), s.pending[:pcmChunkBytes]...))
		s.pending = s.pending[pcmChunkBytes:]
	}
	s.mu.Unlock()

	for _, chunk := range ready {
		select {
		case <-s.stopCh:
			return 0, io.EOF
		case s.chunks <- chunk:
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

func sourceState(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// activePortAvailable treats sources without ports as available.
func activePortAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			// unknown=0, no=1, yes=2
			return port.Available != 1
		}
	}
	return true
}
