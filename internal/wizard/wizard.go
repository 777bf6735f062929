// Package wizard drives the three-step asset creation flow: photos, name,
// then a written or spoken description, ending in one create request.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/fsm"
	"github.com/rbright/inspector/internal/logging"
	"github.com/rbright/inspector/internal/notify"
	"github.com/rbright/inspector/internal/transcribe"
)

// Backend is the part of the REST client used to create assets.
type Backend interface {
	UploadPhoto(ctx context.Context, data []byte, mimeType string) (string, error)
	UploadVoice(ctx context.Context, data []byte, mimeType string) (string, error)
	CreateAsset(ctx context.Context, in api.AssetInput, idempotencyKey string) (api.Asset, error)
}

// Options wires a Wizard for one destination.
type Options struct {
	ProjectID string
	// FolderID is empty for project-root assets.
	FolderID string

	Backend     Backend
	Capture     *capture.Manager
	Transcriber *transcribe.Channel
	Notifier    notify.Notifier
	Logger      *slog.Logger

	// UploadConcurrency bounds parallel photo uploads. Defaults to 1.
	UploadConcurrency int
}

// Draft is a read-only snapshot of the asset being assembled.
type Draft struct {
	ID              string
	ProjectID       string
	FolderID        string
	Name            string
	Photos          []*capture.Artifact
	Voice           *capture.Artifact
	TranscribedText string
	WrittenText     string
}

// Wizard owns one draft and the state machine that gates it.
type Wizard struct {
	backend     Backend
	devices     *capture.Manager
	notifier    notify.Notifier
	logger      *slog.Logger
	concurrency int
	voice       *recorder

	mu        sync.Mutex
	state     fsm.State
	closed    bool
	draftID   string
	projectID string
	folderID  string
	name      string
	photos    []*capture.Artifact
	voiceNote *capture.Artifact
	written   string
	camera    *capture.PhotoSession
}

func New(opts Options) (*Wizard, error) {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, errors.New("wizard requires a project id")
	}
	if opts.Backend == nil {
		return nil, errors.New("wizard requires a backend")
	}
	devices := opts.Capture
	if devices == nil {
		devices = capture.NewManager(capture.Options{Logger: opts.Logger})
	}
	channel := opts.Transcriber
	if channel == nil {
		channel = transcribe.New(nil, transcribe.Options{Logger: opts.Logger})
	}
	concurrency := opts.UploadConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	notifier := notify.OrNoop(opts.Notifier)
	logger := logging.OrDiscard(opts.Logger)

	return &Wizard{
		backend:     opts.Backend,
		devices:     devices,
		notifier:    notifier,
		logger:      logger,
		concurrency: concurrency,
		voice: &recorder{
			devices:  devices,
			channel:  channel,
			notifier: notifier,
			logger:   logger,
		},
		state:     fsm.StatePhotoIntake,
		draftID:   uuid.NewString(),
		projectID: opts.ProjectID,
		folderID:  opts.FolderID,
	}, nil
}

func (w *Wizard) State() fsm.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Draft returns a snapshot of the current draft.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Draft{
		ID:              w.draftID,
		ProjectID:       w.projectID,
		FolderID:        w.folderID,
		Name:            w.name,
		Photos:          append([]*capture.Artifact(nil), w.photos...),
		Voice:           w.voiceNote,
		TranscribedText: w.voice.text(),
		WrittenText:     w.written,
	}
}

// Photos returns the staged photos in staging order.
func (w *Wizard) Photos() []*capture.Artifact {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*capture.Artifact(nil), w.photos...)
}

// Recording reports whether a voice note is being captured.
func (w *Wizard) Recording() bool { return w.voice.recording() }

// CameraActive reports whether a live preview is open.
func (w *Wizard) CameraActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.camera != nil
}

// AddPhoto stages an image artifact.
func (w *Wizard) AddPhoto(a *capture.Artifact) error {
	if a == nil || a.Kind != capture.KindPhoto {
		return errors.New("add photo: artifact is not a photo")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.require("add photo", fsm.StatePhotoIntake); err != nil {
		return err
	}
	w.photos = append(w.photos, a)
	w.logger.Debug("photo staged", "source", a.Source, "bytes", a.Size(), "count", len(w.photos))
	return nil
}

// AddPhotoFile stages an image read from disk.
func (w *Wizard) AddPhotoFile(path string) error {
	a, err := capture.FromFile(path)
	if err != nil {
		return err
	}
	if err := w.AddPhoto(a); err != nil {
		a.Release()
		return err
	}
	return nil
}

// RemovePhoto drops the staged photo at index.
func (w *Wizard) RemovePhoto(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.require("remove photo", fsm.StatePhotoIntake); err != nil {
		return err
	}
	if index < 0 || index >= len(w.photos) {
		return fmt.Errorf("remove photo: index %d out of range", index)
	}
	w.photos[index].Release()
	w.photos = append(w.photos[:index], w.photos[index+1:]...)
	return nil
}

// StartCamera opens a live preview for Snap.
func (w *Wizard) StartCamera(ctx context.Context) error {
	if err := w.checkState("start camera", fsm.StatePhotoIntake); err != nil {
		return err
	}
	session, err := w.devices.StartPhoto(ctx)
	if err != nil {
		if errors.Is(err, capture.ErrDeviceAccessDenied) {
			w.notifier.Notify(notify.LevelError, notify.MsgCameraDenied)
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.state != fsm.StatePhotoIntake {
		_ = session.Stop()
		if w.closed {
			return ErrClosed
		}
		return wrongStep("start camera", w.state)
	}
	w.camera = session
	return nil
}

// Snap captures the latest preview frame and stages it.
func (w *Wizard) Snap(ctx context.Context) (*capture.Artifact, error) {
	w.mu.Lock()
	if err := w.require("snap", fsm.StatePhotoIntake); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	session := w.camera
	w.mu.Unlock()
	if session == nil {
		return nil, ErrNoCamera
	}

	a, err := session.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.AddPhoto(a); err != nil {
		a.Release()
		return nil, err
	}
	return a, nil
}

// StopCamera closes the live preview, if any.
func (w *Wizard) StopCamera() {
	w.mu.Lock()
	session := w.camera
	w.camera = nil
	w.mu.Unlock()
	if session != nil {
		_ = session.Stop()
	}
}

// ConfirmPhotos advances to naming once at least one photo is staged.
func (w *Wizard) ConfirmPhotos() error {
	w.mu.Lock()
	if err := w.require("confirm photos", fsm.StatePhotoIntake); err != nil {
		w.mu.Unlock()
		return err
	}
	if len(w.photos) == 0 {
		w.mu.Unlock()
		return w.invalid(fsm.StatePhotoIntake, notify.MsgPhotosRequired)
	}
	if err := w.transition(fsm.EventConfirmPhotos); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	w.StopCamera()
	return nil
}

// SetName stores the trimmed, NFC-normalized asset name.
func (w *Wizard) SetName(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.require("set name", fsm.StateNaming); err != nil {
		return err
	}
	w.name = normalizeText(name)
	return nil
}

// ConfirmName advances to the description step once a name is set.
func (w *Wizard) ConfirmName() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.require("confirm name", fsm.StateNaming); err != nil {
		return err
	}
	if w.name == "" {
		return w.invalid(fsm.StateNaming, notify.MsgNameRequired)
	}
	return w.transition(fsm.EventConfirmName)
}

// SetWrittenText stores the typed description.
func (w *Wizard) SetWrittenText(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.require("set description", fsm.StateDescription); err != nil {
		return err
	}
	w.written = strings.TrimSpace(text)
	return nil
}

// ToggleVoice starts a recording, or stops the running one and stages its
// audio as the voice note. It reports whether a recording is now running.
func (w *Wizard) ToggleVoice(ctx context.Context) (bool, error) {
	if err := w.checkState("toggle voice", fsm.StateDescription); err != nil {
		return false, err
	}
	if w.voice.recording() {
		return false, w.stopVoice(ctx)
	}
	if err := w.voice.start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Back returns to the previous step. Leaving the description step stops any
// running recording and keeps its audio.
func (w *Wizard) Back(ctx context.Context) error {
	state := w.State()
	if state == fsm.StateDescription {
		if err := w.stopVoice(ctx); err != nil {
			return err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.transition(fsm.EventBack)
}

// Finish uploads every staged artifact and creates the asset. Photos are
// uploaded first, in order, then the voice note; nothing is created unless
// all uploads succeed. On success the wizard resets to a fresh draft.
func (w *Wizard) Finish(ctx context.Context) (api.Asset, error) {
	if err := w.checkState("finish", fsm.StateDescription); err != nil {
		return api.Asset{}, err
	}
	if err := w.stopVoice(ctx); err != nil {
		w.logger.Warn("voice note stop failed", "error", err.Error())
	}

	w.mu.Lock()
	if err := w.require("finish", fsm.StateDescription); err != nil {
		w.mu.Unlock()
		return api.Asset{}, err
	}
	transcript := w.voice.text()
	if w.written == "" && strings.TrimSpace(transcript) == "" {
		w.mu.Unlock()
		return api.Asset{}, w.invalid(fsm.StateDescription, notify.MsgDescriptionRequired)
	}
	sub := submission{
		key:       w.draftID,
		name:      w.name,
		projectID: w.projectID,
		folderID:  w.folderID,
		written:   w.written,
		spoken:    strings.TrimSpace(transcript),
	}
	for _, p := range w.photos {
		sub.photos = append(sub.photos, payload{data: p.Bytes(), mimeType: p.MimeType})
	}
	if w.voiceNote != nil {
		sub.voice = &payload{data: w.voiceNote.Bytes(), mimeType: w.voiceNote.MimeType}
	}
	if err := w.transition(fsm.EventSubmit); err != nil {
		w.mu.Unlock()
		return api.Asset{}, err
	}
	w.mu.Unlock()

	w.notifier.Notify(notify.LevelInfo, notify.MsgCreating)
	asset, err := w.submit(ctx, sub)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return api.Asset{}, ErrClosed
	}
	if err != nil {
		if terr := w.transition(fsm.EventFailed); terr != nil {
			w.logger.Error("failed transition rejected", "error", terr.Error())
		}
		w.logger.Error("asset create failed", "draft", sub.key, "error", err.Error())
		w.notifier.Notify(notify.LevelError, notify.MsgCreateFailed)
		return api.Asset{}, err
	}

	if err := w.transition(fsm.EventSucceeded); err != nil {
		return api.Asset{}, err
	}
	w.discardLocked()
	if err := w.transition(fsm.EventReset); err != nil {
		return api.Asset{}, err
	}
	w.logger.Info("asset created", "asset", asset.ID, "photos", len(sub.photos), "voice", sub.voice != nil)
	w.notifier.Notify(notify.LevelSuccess, notify.MsgCreated)
	return asset, nil
}

type payload struct {
	data     []byte
	mimeType string
}

type submission struct {
	key       string
	name      string
	projectID string
	folderID  string
	written   string
	spoken    string
	photos    []payload
	voice     *payload
}

func (w *Wizard) submit(ctx context.Context, sub submission) (api.Asset, error) {
	urls := make([]string, len(sub.photos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, p := range sub.photos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			url, err := w.backend.UploadPhoto(gctx, p.data, p.mimeType)
			if err != nil {
				return fmt.Errorf("upload photo %d: %w", i+1, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return api.Asset{}, err
	}

	var voiceURL *string
	if sub.voice != nil {
		url, err := w.backend.UploadVoice(ctx, sub.voice.data, sub.voice.mimeType)
		if err != nil {
			return api.Asset{}, fmt.Errorf("upload voice note: %w", err)
		}
		voiceURL = &url
	}

	in := api.AssetInput{
		Name:            sub.name,
		ProjectID:       sub.projectID,
		Photos:          urls,
		VoiceNoteURL:    voiceURL,
		VoiceToText:     sub.spoken,
		TextDescription: sub.written,
	}
	if sub.folderID != "" {
		folderID := sub.folderID
		in.FolderID = &folderID
	}
	asset, err := w.backend.CreateAsset(ctx, in, sub.key)
	if err != nil {
		return api.Asset{}, fmt.Errorf("create asset: %w", err)
	}
	return asset, nil
}

// Cancel discards the draft and closes the wizard. Reopen starts over.
func (w *Wizard) Cancel(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.state == fsm.StateSubmitting {
		defer w.mu.Unlock()
		return w.transition(fsm.EventCancel)
	}
	w.mu.Unlock()

	w.StopCamera()
	if err := w.stopVoice(ctx); err != nil {
		w.logger.Warn("voice note stop failed", "error", err.Error())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.transition(fsm.EventCancel); err != nil {
		return err
	}
	w.discardLocked()
	return nil
}

// Reopen starts a fresh draft after Cancel.
func (w *Wizard) Reopen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.transition(fsm.EventReset)
}

// Close tears the wizard down. Devices are released, staged artifacts are
// dropped and an in-flight Finish returns ErrClosed without touching state.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	session := w.camera
	w.camera = nil
	w.mu.Unlock()

	if session != nil {
		_ = session.Stop()
	}
	w.voice.close()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.releaseLocked()
}

func (w *Wizard) stopVoice(ctx context.Context) error {
	artifact, err := w.voice.stop(ctx)
	if artifact == nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		artifact.Release()
		return ErrClosed
	}
	if w.voiceNote != nil {
		w.voiceNote.Release()
	}
	w.voiceNote = artifact
	return err
}

func (w *Wizard) discardLocked() {
	w.releaseLocked()
	w.draftID = uuid.NewString()
	w.name = ""
	w.written = ""
	w.voice.reset()
}

func (w *Wizard) releaseLocked() {
	for _, p := range w.photos {
		p.Release()
	}
	w.photos = nil
	if w.voiceNote != nil {
		w.voiceNote.Release()
		w.voiceNote = nil
	}
}

func (w *Wizard) checkState(op string, want fsm.State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.require(op, want)
}

func (w *Wizard) require(op string, want fsm.State) error {
	if w.closed {
		return ErrClosed
	}
	if w.state != want {
		return wrongStep(op, w.state)
	}
	return nil
}

func (w *Wizard) invalid(step fsm.State, message string) error {
	w.notifier.Notify(notify.LevelWarn, message)
	return &ValidationError{Step: step, Message: message}
}

func (w *Wizard) transition(event fsm.Event) error {
	next, err := fsm.Transition(w.state, event)
	if err != nil {
		return err
	}
	w.logger.Debug("wizard transition", "from", w.state, "event", event, "to", next)
	w.state = next
	return nil
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
