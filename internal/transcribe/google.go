package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rbright/inspector/internal/logging"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
)

// GoogleConfig selects the Speech-to-Text endpoint and recognition options.
type GoogleConfig struct {
	Endpoint             string
	Insecure             bool
	CredentialsFile      string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	DialTimeout          time.Duration
	// ResponseDump receives one protojson line per response when set.
	ResponseDump io.Writer
	Logger       *slog.Logger
}

// Google streams 16 kHz LINEAR16 audio to Cloud Speech-to-Text.
type Google struct {
	cfg    GoogleConfig
	logger *slog.Logger
}

func NewGoogle(cfg GoogleConfig) *Google {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "en-US"
	}
	return &Google{cfg: cfg, logger: logging.OrDiscard(cfg.Logger)}
}

func (g *Google) Open(ctx context.Context) (Recognition, error) {
	endpoint := strings.TrimSpace(g.cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("speech endpoint is empty")
	}

	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	var conn *grpc.ClientConn
	if g.cfg.Insecure {
		var err error
		conn, err = grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("dial speech grpc %q: %w", endpoint, err)
		}
		readyCtx, cancel := context.WithTimeout(ctx, g.cfg.DialTimeout)
		conn.Connect()
		err = waitForReady(readyCtx, conn)
		cancel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("wait for speech grpc readiness: %w", err)
		}
		opts = append(opts, option.WithGRPCConn(conn))
	} else if g.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.cfg.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	closeAll := func() {
		cancel()
		_ = client.Close()
		if conn != nil {
			_ = conn.Close()
		}
	}

	var stream speechpb.Speech_StreamingRecognizeClient
	err = withTimeout(ctx, g.cfg.DialTimeout, func() error {
		var openErr error
		stream, openErr = client.StreamingRecognize(streamCtx)
		if openErr != nil {
			return openErr
		}
		return stream.Send(g.configRequest())
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open streaming recognizer: %w", err)
	}

	g.logger.Debug("speech stream opened", "endpoint", endpoint, "language", g.cfg.LanguageCode)
	return &googleRecognition{stream: stream, close: closeAll, dump: g.cfg.ResponseDump}, nil
}

func (g *Google) configRequest() *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            16000,
					AudioChannelCount:          1,
					LanguageCode:               g.cfg.LanguageCode,
					EnableAutomaticPunctuation: g.cfg.AutomaticPunctuation,
					Model:                      strings.TrimSpace(g.cfg.Model),
				},
				InterimResults: true,
				// The transcript slot closes on the first final, so ask the
				// backend to end the utterance there as well.
				SingleUtterance: true,
			},
		},
	}
}

type googleRecognition struct {
	stream speechpb.Speech_StreamingRecognizeClient
	close  func()
	dump   io.Writer

	sendMu    sync.Mutex
	closeOnce sync.Once
}

func (r *googleRecognition) Send(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	return r.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: pcm},
	})
}

func (r *googleRecognition) CloseSend() error {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	return r.stream.CloseSend()
}

func (r *googleRecognition) Recv() (Result, error) {
	resp, err := r.stream.Recv()
	if err != nil {
		return Result{}, err
	}
	if r.dump != nil {
		if line, merr := protojson.Marshal(resp); merr == nil {
			_, _ = r.dump.Write(append(line, '\n'))
		}
	}
	if status := resp.GetError(); status != nil {
		return Result{}, fmt.Errorf("speech error %d: %s", status.GetCode(), status.GetMessage())
	}
	return toResult(resp), nil
}

func (r *googleRecognition) Close() error {
	r.closeOnce.Do(r.close)
	return nil
}

// toResult splits a response into finalized segments and the concatenated
// interim hypothesis.
func toResult(resp *speechpb.StreamingRecognizeResponse) Result {
	var (
		out     Result
		partial []string
	)
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		text := cleanSegment(alternatives[0].GetTranscript())
		if text == "" {
			continue
		}
		if result.GetIsFinal() {
			out.Finals = append(out.Finals, text)
		} else {
			partial = append(partial, text)
		}
	}
	out.Partial = strings.Join(partial, " ")
	return out
}

// waitForReady blocks until the connection is Ready or ctx expires.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}
		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state)
		}
	}
}

// withTimeout bounds a blocking call that does not observe ctx on its own.
func withTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	result := make(chan error, 1)
	go func() { result <- call() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case err := <-result:
		return err
	}
}
