// Package capture acquires camera and microphone sessions and produces
// staged photo and audio artifacts.
package capture

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPhoto Kind = "photo"
	KindAudio Kind = "audio"
)

// Artifact is one captured payload staged for upload.
type Artifact struct {
	ID        string
	Kind      Kind
	MimeType  string
	CreatedAt time.Time
	Source    string

	mu       sync.Mutex
	data     []byte
	released bool
}

func newArtifact(kind Kind, mimeType, source string, data []byte) *Artifact {
	return &Artifact{
		ID:        uuid.NewString(),
		Kind:      kind,
		MimeType:  mimeType,
		CreatedAt: time.Now().UTC(),
		Source:    source,
		data:      data,
	}
}

// Bytes returns the payload, or nil once released.
func (a *Artifact) Bytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// Size is len(Bytes()).
func (a *Artifact) Size() int {
	return len(a.Bytes())
}

// Release drops the payload. Later calls are no-ops.
func (a *Artifact) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.released = true
}

func (a *Artifact) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// FromFile stages an existing image file as a photo artifact.
func FromFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo %q: %w", path, err)
	}
	return FromBytes(data, "file:"+filepath.Base(path))
}

// FromBytes stages image bytes as a photo artifact. Non-image content is rejected.
func FromBytes(data []byte, source string) (*Artifact, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("photo is empty")
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("photo content type %q is not an image", mimeType)
	}
	return newArtifact(KindPhoto, mimeType, source, data), nil
}
