package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAudioSessionStopProducesSingleWAVArtifact(t *testing.T) {
	stream := newFakeStream("mic-a", nil, []byte{1, 2}, []byte{3, 4})
	m := NewManager(Options{Microphone: &fakeMic{streams: []*fakeStream{stream}}})

	session, err := m.StartAudio(context.Background())
	require.NoError(t, err)
	require.True(t, m.Active(ClassMicrophone))

	artifact, err := session.Stop()
	require.NoError(t, err)
	require.NotNil(t, artifact)
	require.Equal(t, KindAudio, artifact.Kind)
	require.Equal(t, "audio/wav", artifact.MimeType)
	require.True(t, stream.isStopped())
	require.False(t, m.Active(ClassMicrophone))

	data := artifact.Bytes()
	require.Len(t, data, 48)
	require.Equal(t, "RIFF", string(data[0:4]))
	require.Equal(t, uint32(SampleRate), binary.LittleEndian.Uint32(data[24:28]))
	require.Equal(t, []byte{1, 2, 3, 4}, data[44:])

	again, err := session.Stop()
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestAudioSessionSubscribersReceiveChunksUntilStop(t *testing.T) {
	stream := &fakeStream{label: "mic", chunks: make(chan []byte, 4)}
	m := NewManager(Options{Microphone: &fakeMic{streams: []*fakeStream{stream}}})

	session, err := m.StartAudio(context.Background())
	require.NoError(t, err)

	pcm, cancel := session.Subscribe()
	defer cancel()

	stream.raw = []byte{9, 9}
	stream.chunks <- []byte{9, 9}
	require.Equal(t, []byte{9, 9}, <-pcm)

	_, err = session.Stop()
	require.NoError(t, err)
	_, ok := <-pcm
	require.False(t, ok)

	late, _ := session.Subscribe()
	_, ok = <-late
	require.False(t, ok)
}

func TestCancelledSubscriberDoesNotBlockPump(t *testing.T) {
	stream := &fakeStream{label: "mic", chunks: make(chan []byte, 4)}
	m := NewManager(Options{Microphone: &fakeMic{streams: []*fakeStream{stream}}})

	session, err := m.StartAudio(context.Background())
	require.NoError(t, err)

	_, cancel := session.Subscribe()
	cancel()
	for i := 0; i < 4; i++ {
		stream.chunks <- []byte{byte(i)}
	}

	_, err = session.Stop()
	require.NoError(t, err)
}

func TestStartAudioStopsPriorSessionBeforeAcquiring(t *testing.T) {
	var events []string
	first := newFakeStream("first", &events)
	second := newFakeStream("second", &events)
	m := NewManager(Options{Microphone: &fakeMic{streams: []*fakeStream{first, second}, events: &events}})

	prior, err := m.StartAudio(context.Background())
	require.NoError(t, err)
	_, err = m.StartAudio(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"open first", "stop first", "open second"}, events)
	require.True(t, prior.Stopped())

	artifact, err := prior.Stop()
	require.NoError(t, err)
	require.Nil(t, artifact)
}

func TestStartPhotoStopsPriorSessionBeforeAcquiring(t *testing.T) {
	var events []string
	first := &fakePreview{name: "first", frame: testJPEG, events: &events}
	second := &fakePreview{name: "second", frame: testJPEG, events: &events}
	m := NewManager(Options{Camera: &fakeCamera{previews: []*fakePreview{first, second}}})

	prior, err := m.StartPhoto(context.Background())
	require.NoError(t, err)
	current, err := m.StartPhoto(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"open first", "stop first", "open second"}, events)
	require.True(t, prior.Stopped())
	require.False(t, current.Stopped())
	require.True(t, m.Active(ClassCamera))

	_, err = prior.Capture(context.Background())
	require.ErrorIs(t, err, ErrSessionStopped)
	require.NoError(t, prior.Stop())
	require.True(t, m.Active(ClassCamera))
}

func TestDeniedPreviewCommandLeavesNoSession(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	m := NewManager(Options{Camera: ExecCamera{
		Command:      []string{"sh", "-c", "echo 'Cannot open video device /dev/video0: Permission denied' >&2; exit 1"},
		FrameTimeout: 2 * time.Second,
	}})

	session, err := m.StartPhoto(context.Background())
	require.ErrorIs(t, err, ErrDeviceAccessDenied)
	require.Nil(t, session)
	require.Contains(t, err.Error(), "Permission denied")
	require.False(t, m.Active(ClassCamera))
}

func TestAcquisitionFailureMatchesDeviceAccessDenied(t *testing.T) {
	m := NewManager(Options{
		Microphone: &fakeMic{err: errors.New("permission refused")},
		Camera:     &fakeCamera{err: errors.New("busy")},
	})

	_, err := m.StartAudio(context.Background())
	require.ErrorIs(t, err, ErrDeviceAccessDenied)
	require.Contains(t, err.Error(), "permission refused")
	require.False(t, m.Active(ClassMicrophone))

	_, err = m.StartPhoto(context.Background())
	require.ErrorIs(t, err, ErrDeviceAccessDenied)

	var devErr *DeviceError
	require.True(t, errors.As(err, &devErr))
	require.Equal(t, ClassCamera, devErr.Class)
}

func TestMissingDevicesFailAcquisition(t *testing.T) {
	m := NewManager(Options{})
	_, err := m.StartAudio(context.Background())
	require.ErrorIs(t, err, ErrDeviceAccessDenied)
	_, err = m.StartPhoto(context.Background())
	require.ErrorIs(t, err, ErrDeviceAccessDenied)
}

func TestPhotoSessionCaptureKeepsPreviewRunning(t *testing.T) {
	preview := &fakePreview{frame: testJPEG}
	m := NewManager(Options{Camera: &fakeCamera{previews: []*fakePreview{preview}}})

	session, err := m.StartPhoto(context.Background())
	require.NoError(t, err)

	first, err := session.Capture(context.Background())
	require.NoError(t, err)
	second, err := session.Capture(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, KindPhoto, first.Kind)
	require.Equal(t, "image/jpeg", first.MimeType)
	require.False(t, preview.isStopped())

	require.NoError(t, session.Stop())
	require.True(t, preview.isStopped())
	require.NoError(t, session.Stop())

	_, err = session.Capture(context.Background())
	require.ErrorIs(t, err, ErrSessionStopped)
}

func TestPhotoCaptureRejectsNonImageFrame(t *testing.T) {
	preview := &fakePreview{frame: []byte("not an image at all")}
	m := NewManager(Options{Camera: &fakeCamera{previews: []*fakePreview{preview}}})

	session, err := m.StartPhoto(context.Background())
	require.NoError(t, err)
	_, err = session.Capture(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not an image")
}

func TestManagerCloseReleasesEverything(t *testing.T) {
	stream := newFakeStream("mic", nil)
	preview := &fakePreview{frame: testJPEG}
	m := NewManager(Options{
		Microphone: &fakeMic{streams: []*fakeStream{stream}},
		Camera:     &fakeCamera{previews: []*fakePreview{preview}},
	})

	audio, err := m.StartAudio(context.Background())
	require.NoError(t, err)
	photo, err := m.StartPhoto(context.Background())
	require.NoError(t, err)

	m.Close()
	require.True(t, stream.isStopped())
	require.True(t, preview.isStopped())
	require.True(t, audio.Stopped())
	require.True(t, photo.Stopped())

	_, err = m.StartAudio(context.Background())
	require.ErrorIs(t, err, ErrManagerClosed)
	_, err = m.StartPhoto(context.Background())
	require.ErrorIs(t, err, ErrManagerClosed)
}

func TestArtifactReleaseIsIdempotent(t *testing.T) {
	artifact, err := FromBytes(testJPEG, "test")
	require.NoError(t, err)
	require.Equal(t, len(testJPEG), artifact.Size())

	artifact.Release()
	artifact.Release()
	require.True(t, artifact.Released())
	require.Nil(t, artifact.Bytes())
}

func TestFromBytesRejectsNonImages(t *testing.T) {
	_, err := FromBytes(nil, "empty")
	require.Error(t, err)

	_, err = FromBytes([]byte("%PDF-1.4"), "doc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not an image")
}

func TestFromFileStagesImage(t *testing.T) {
	path := writeTemp(t, "photo.jpg", testJPEG)
	artifact, err := FromFile(path)
	require.NoError(t, err)
	require.Equal(t, "file:photo.jpg", artifact.Source)
	require.True(t, bytes.Equal(testJPEG, artifact.Bytes()))

	_, err = FromFile(path + ".missing")
	require.Error(t, err)
}
