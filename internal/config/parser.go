package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tailscale/hujson"
)

type fileConfig struct {
	API    *fileAPI    `json:"api"`
	Upload *fileUpload `json:"upload"`
	Counts *fileCounts `json:"counts"`
	Audio  *fileAudio  `json:"audio"`
	Camera *fileCamera `json:"camera"`
	Speech *fileSpeech `json:"speech"`
	Log    *fileLog    `json:"log"`
	Debug  *fileDebug  `json:"debug"`
}

type fileAPI struct {
	BaseURL   *string  `json:"base_url"`
	Token     *string  `json:"token"`
	TokenEnv  *string  `json:"token_env"`
	CompanyID *string  `json:"company_id"`
	TimeoutMS *int     `json:"timeout_ms"`
	RateLimit *float64 `json:"rate_limit"`
	Burst     *int     `json:"burst"`
}

type fileUpload struct {
	Concurrency *int `json:"concurrency"`
}

type fileCounts struct {
	Concurrency *int `json:"concurrency"`
}

type fileAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type fileCamera struct {
	PreviewCmd     []string `json:"preview_cmd"`
	FrameTimeoutMS *int     `json:"frame_timeout_ms"`
}

type fileSpeech struct {
	Enable               *bool   `json:"enable"`
	Endpoint             *string `json:"endpoint"`
	Insecure             *bool   `json:"insecure"`
	CredentialsFile      *string `json:"credentials_file"`
	LanguageCode         *string `json:"language_code"`
	Model                *string `json:"model"`
	AutomaticPunctuation *bool   `json:"automatic_punctuation"`
	DialTimeoutMS        *int    `json:"dial_timeout_ms"`
	FinalizeTimeoutMS    *int    `json:"finalize_timeout_ms"`
}

type fileLog struct {
	Level *string `json:"level"`
}

type fileDebug struct {
	ArtifactDump *bool `json:"artifact_dump"`
	SpeechDump   *bool `json:"speech_dump"`
}

// Parse reads JSONC configuration content on top of base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	// Standardize blanks out comments and trailing commas in place, so
	// decoder offsets still point at the original line and column.
	standard, err := hujson.Standardize([]byte(content))
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	decoder := json.NewDecoder(strings.NewReader(string(standard)))
	decoder.DisallowUnknownFields()

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapDecodeError(string(standard), err)
	}
	if err := ensureSingleValue(decoder); err != nil {
		return Config{}, nil, wrapDecodeError(string(standard), err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (p fileConfig) applyTo(cfg *Config) {
	if a := p.API; a != nil {
		setString(&cfg.API.BaseURL, a.BaseURL)
		setString(&cfg.API.Token, a.Token)
		setString(&cfg.API.TokenEnv, a.TokenEnv)
		setString(&cfg.API.CompanyID, a.CompanyID)
		setInt(&cfg.API.TimeoutMS, a.TimeoutMS)
		if a.RateLimit != nil {
			cfg.API.RateLimit = *a.RateLimit
		}
		setInt(&cfg.API.Burst, a.Burst)
	}
	if p.Upload != nil {
		setInt(&cfg.Upload.Concurrency, p.Upload.Concurrency)
	}
	if p.Counts != nil {
		setInt(&cfg.Counts.Concurrency, p.Counts.Concurrency)
	}
	if a := p.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}
	if c := p.Camera; c != nil {
		if c.PreviewCmd != nil {
			cfg.Camera.PreviewCmd = append([]string(nil), c.PreviewCmd...)
		}
		setInt(&cfg.Camera.FrameTimeoutMS, c.FrameTimeoutMS)
	}
	if s := p.Speech; s != nil {
		setBool(&cfg.Speech.Enable, s.Enable)
		setString(&cfg.Speech.Endpoint, s.Endpoint)
		setBool(&cfg.Speech.Insecure, s.Insecure)
		setString(&cfg.Speech.CredentialsFile, s.CredentialsFile)
		setString(&cfg.Speech.LanguageCode, s.LanguageCode)
		setString(&cfg.Speech.Model, s.Model)
		setBool(&cfg.Speech.AutomaticPunctuation, s.AutomaticPunctuation)
		setInt(&cfg.Speech.DialTimeoutMS, s.DialTimeoutMS)
		setInt(&cfg.Speech.FinalizeTimeoutMS, s.FinalizeTimeoutMS)
	}
	if p.Log != nil {
		setString(&cfg.Log.Level, p.Log.Level)
	}
	if d := p.Debug; d != nil {
		setBool(&cfg.Debug.ArtifactDump, d.ArtifactDump)
		setBool(&cfg.Debug.SpeechDump, d.SpeechDump)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func ensureSingleValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	// offset points just past the offending byte.
	prefix := content[:min(int(offset), len(content))-1]
	line := strings.Count(prefix, "\n") + 1
	col := len(prefix) - strings.LastIndexByte(prefix, '\n')
	return line, col
}
