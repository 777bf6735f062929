package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/fsm"
	"github.com/rbright/inspector/internal/logging"
	"github.com/rbright/inspector/internal/notify"
	"github.com/rbright/inspector/internal/transcribe"
)

// EditBackend is the part of the REST client used to edit an asset.
type EditBackend interface {
	GetAsset(ctx context.Context, id string) (api.Asset, error)
	UploadVoice(ctx context.Context, data []byte, mimeType string) (string, error)
	UpdateAsset(ctx context.Context, id string, in api.AssetInput) (api.Asset, error)
}

type EditOptions struct {
	Backend     EditBackend
	Capture     *capture.Manager
	Transcriber *transcribe.Channel
	Notifier    notify.Notifier
	Logger      *slog.Logger
}

// EditSession edits the name and descriptions of an existing asset. Photos
// are kept as uploaded; a new voice note replaces the old one on Save.
type EditSession struct {
	backend  EditBackend
	notifier notify.Notifier
	logger   *slog.Logger
	voice    *recorder

	mu        sync.Mutex
	asset     api.Asset
	name      string
	written   string
	voiceNote *capture.Artifact
	closed    bool
}

// LoadEditSession fetches the asset and seeds an edit session from it.
func LoadEditSession(ctx context.Context, id string, opts EditOptions) (*EditSession, error) {
	if opts.Backend == nil {
		return nil, errors.New("edit session requires a backend")
	}
	asset, err := opts.Backend.GetAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load asset %q: %w", id, err)
	}

	devices := opts.Capture
	if devices == nil {
		devices = capture.NewManager(capture.Options{Logger: opts.Logger})
	}
	channel := opts.Transcriber
	if channel == nil {
		channel = transcribe.New(nil, transcribe.Options{Logger: opts.Logger})
	}
	notifier := notify.OrNoop(opts.Notifier)
	logger := logging.OrDiscard(opts.Logger)

	s := &EditSession{
		backend:  opts.Backend,
		notifier: notifier,
		logger:   logger,
		voice: &recorder{
			devices:  devices,
			channel:  channel,
			notifier: notifier,
			logger:   logger,
		},
		asset:   asset,
		name:    asset.Name,
		written: asset.TextDescription,
	}
	s.voice.setText(asset.VoiceToText)
	return s, nil
}

// Asset returns the last saved version.
func (s *EditSession) Asset() api.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset
}

func (s *EditSession) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *EditSession) WrittenText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *EditSession) TranscribedText() string { return s.voice.text() }

func (s *EditSession) Recording() bool { return s.voice.recording() }

func (s *EditSession) SetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.name = normalizeText(name)
	return nil
}

func (s *EditSession) SetWrittenText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.written = strings.TrimSpace(text)
	return nil
}

// SetTranscribedText overrides the transcript by hand.
func (s *EditSession) SetTranscribedText(text string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.voice.setText(strings.TrimSpace(text))
	return nil
}

// ToggleVoice records a replacement voice note. Starting clears the
// transcript; stopping stages the audio for Save.
func (s *EditSession) ToggleVoice(ctx context.Context) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	if s.voice.recording() {
		return false, s.stopVoice(ctx)
	}
	if err := s.voice.start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes the edits with PUT. Existing photos are reused and the voice
// note is uploaded only when a new one was recorded.
func (s *EditSession) Save(ctx context.Context) (api.Asset, error) {
	if s.isClosed() {
		return api.Asset{}, ErrClosed
	}
	if err := s.stopVoice(ctx); err != nil {
		s.logger.Warn("voice note stop failed", "error", err.Error())
	}

	s.mu.Lock()
	transcript := strings.TrimSpace(s.voice.text())
	if s.name == "" {
		s.mu.Unlock()
		return api.Asset{}, s.invalid(fsm.StateNaming, notify.MsgNameRequired)
	}
	if s.written == "" && transcript == "" {
		s.mu.Unlock()
		return api.Asset{}, s.invalid(fsm.StateDescription, notify.MsgDescriptionRequired)
	}
	asset := s.asset
	in := api.AssetInput{
		Name:            s.name,
		ProjectID:       asset.ProjectID,
		Photos:          append([]string(nil), asset.Photos...),
		VoiceNoteURL:    asset.VoiceNoteURL,
		VoiceToText:     transcript,
		TextDescription: s.written,
	}
	if asset.FolderID != "" {
		folderID := asset.FolderID
		in.FolderID = &folderID
	}
	var voice *payload
	if s.voiceNote != nil {
		voice = &payload{data: s.voiceNote.Bytes(), mimeType: s.voiceNote.MimeType}
	}
	s.mu.Unlock()

	updated, err := s.save(ctx, asset.ID, in, voice)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return api.Asset{}, ErrClosed
	}
	if err != nil {
		s.logger.Error("asset update failed", "asset", asset.ID, "error", err.Error())
		s.notifier.Notify(notify.LevelError, notify.MsgUpdateFailed)
		return api.Asset{}, err
	}
	s.asset = updated
	if s.voiceNote != nil {
		s.voiceNote.Release()
		s.voiceNote = nil
	}
	s.notifier.Notify(notify.LevelSuccess, notify.MsgUpdated)
	return updated, nil
}

func (s *EditSession) save(ctx context.Context, id string, in api.AssetInput, voice *payload) (api.Asset, error) {
	if voice != nil {
		url, err := s.backend.UploadVoice(ctx, voice.data, voice.mimeType)
		if err != nil {
			return api.Asset{}, fmt.Errorf("upload voice note: %w", err)
		}
		in.VoiceNoteURL = &url
	}
	updated, err := s.backend.UpdateAsset(ctx, id, in)
	if err != nil {
		return api.Asset{}, fmt.Errorf("update asset: %w", err)
	}
	return updated, nil
}

// Close abandons unsaved edits and releases the microphone.
func (s *EditSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.voice.close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voiceNote != nil {
		s.voiceNote.Release()
		s.voiceNote = nil
	}
}

func (s *EditSession) stopVoice(ctx context.Context) error {
	artifact, err := s.voice.stop(ctx)
	if artifact == nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		artifact.Release()
		return ErrClosed
	}
	if s.voiceNote != nil {
		s.voiceNote.Release()
	}
	s.voiceNote = artifact
	return err
}

func (s *EditSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *EditSession) invalid(step fsm.State, message string) error {
	s.notifier.Notify(notify.LevelWarn, message)
	return &ValidationError{Step: step, Message: message}
}
