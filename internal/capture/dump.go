package capture

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/rbright/inspector/internal/logging"
)

// Dumper writes artifacts under the debug state directory. A nil Dumper
// discards everything.
type Dumper struct {
	dir    string
	logger *slog.Logger
}

// NewDumper returns nil when enabled is false.
func NewDumper(enabled bool, logger *slog.Logger) (*Dumper, error) {
	if !enabled {
		return nil, nil
	}
	state, err := logging.StateDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(state, "inspector", "debug")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}
	return &Dumper{dir: dir, logger: logging.OrDiscard(logger)}, nil
}

// Dump writes a copy of the artifact and returns its path.
func (d *Dumper) Dump(a *Artifact) string {
	if d == nil || a == nil {
		return ""
	}
	name := fmt.Sprintf("%s-%s-%s.%s",
		a.Kind,
		a.CreatedAt.Format("20060102-150405.000"),
		a.ID[:8],
		extension(a.MimeType),
	)
	path := filepath.Join(d.dir, name)
	if err := atomic.WriteFile(path, bytes.NewReader(a.Bytes())); err != nil {
		d.logger.Warn("artifact dump failed", "path", path, "error", err.Error())
		return ""
	}
	d.logger.Debug("artifact dumped", "path", path, "bytes", a.Size())
	return path
}

func extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "audio/wav":
		return "wav"
	default:
		return "bin"
	}
}
