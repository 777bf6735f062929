package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ExecCamera runs a preview command that writes an MJPEG stream to stdout.
type ExecCamera struct {
	Command      []string
	FrameTimeout time.Duration
}

func (c ExecCamera) Open(ctx context.Context) (Preview, error) {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return nil, errors.New("camera preview command is empty")
	}
	if _, err := exec.LookPath(c.Command[0]); err != nil {
		return nil, fmt.Errorf("camera preview command %q: %w", c.Command[0], err)
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(procCtx, c.Command[0], c.Command[1:]...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("camera stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start camera preview: %w", err)
	}

	timeout := c.FrameTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	p := &execPreview{
		label:   strings.Join(c.Command, " "),
		cmd:     cmd,
		cancel:  cancel,
		stderr:  stderr,
		timeout: timeout,
		first:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.readFrames(stdout)

	// A preview that cannot open its device exits or stalls before the
	// first frame; that is an acquisition failure, not a live session.
	if err := p.awaitFirst(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

type execPreview struct {
	label   string
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stderr  *lockedBuffer
	timeout time.Duration

	mu       sync.Mutex
	latest   []byte
	readErr  error
	first    chan struct{}
	gotFirst bool
	done     chan struct{}

	stopOnce sync.Once
}

func (p *execPreview) Label() string { return p.label }

// readFrames keeps the most recent complete frame until stdout closes.
func (p *execPreview) readFrames(stdout io.Reader) {
	defer close(p.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256*1024), 16*1024*1024)
	scanner.Split(splitJPEG)
	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		p.mu.Lock()
		p.latest = frame
		if !p.gotFirst {
			p.gotFirst = true
			close(p.first)
		}
		p.mu.Unlock()
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	p.mu.Lock()
	p.readErr = err
	p.mu.Unlock()
}

// awaitFirst blocks until the first frame. On failure the process is
// stopped before its stderr is read so the device's reason is complete.
func (p *execPreview) awaitFirst(ctx context.Context) error {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-p.first:
		return nil
	case <-p.done:
	case <-timer.C:
		_ = p.Stop()
		return p.failure(fmt.Errorf("camera produced no frame within %s", p.timeout))
	case <-ctx.Done():
		_ = p.Stop()
		return ctx.Err()
	}

	p.mu.Lock()
	hasFrame := p.latest != nil
	readErr := p.readErr
	p.mu.Unlock()
	if hasFrame {
		return nil
	}
	_ = p.Stop()
	return p.failure(fmt.Errorf("camera preview ended without a frame: %w", readErr))
}

func (p *execPreview) failure(err error) error {
	if detail := strings.TrimSpace(p.stderr.String()); detail != "" {
		return fmt.Errorf("%w: %s", err, detail)
	}
	return err
}

// Latest returns the most recent frame. If the stream has ended it is the
// last frame the command produced.
func (p *execPreview) Latest(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return nil, errors.New("camera has no frame")
	}
	return append([]byte(nil), p.latest...), nil
}

// Stop kills the preview process and waits for it to exit.
func (p *execPreview) Stop() error {
	p.stopOnce.Do(func() {
		p.cancel()
		_ = p.cmd.Wait()
		<-p.done
	})
	return nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc yielding complete JPEG images from an
// MJPEG byte stream. Bytes before a start-of-image marker are discarded.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegStart)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF in case it begins the next marker.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegStart):], jpegEnd)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + len(jpegStart) + end + len(jpegEnd)
	return stop, data[start:stop], nil
}
