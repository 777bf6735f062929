// Package config resolves, parses, validates, and defaults inspector configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by inspector.
type Config struct {
	API    APIConfig
	Upload UploadConfig
	Counts CountsConfig
	Audio  AudioConfig
	Camera CameraConfig
	Speech SpeechConfig
	Log    LogConfig
	Debug  DebugConfig
}

// APIConfig controls the backend REST collaborator.
type APIConfig struct {
	BaseURL   string
	Token     string
	TokenEnv  string
	CompanyID string
	TimeoutMS int
	RateLimit float64
	Burst     int
}

// Timeout converts TimeoutMS to a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMS) * time.Millisecond
}

// UploadConfig bounds photo upload fan-out during asset submission.
type UploadConfig struct {
	Concurrency int
}

// CountsConfig bounds per-folder asset-count fan-out.
type CountsConfig struct {
	Concurrency int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// CameraConfig controls the live preview process used for photo capture.
type CameraConfig struct {
	PreviewCmd     []string
	FrameTimeoutMS int
}

// FrameTimeout converts FrameTimeoutMS to a duration.
func (c CameraConfig) FrameTimeout() time.Duration {
	return time.Duration(c.FrameTimeoutMS) * time.Millisecond
}

// SpeechConfig controls live transcription against a streaming recognizer.
type SpeechConfig struct {
	Enable               bool
	Endpoint             string
	Insecure             bool
	CredentialsFile      string
	LanguageCode         string
	Model                string
	AutomaticPunctuation bool
	DialTimeoutMS        int
	FinalizeTimeoutMS    int
}

// DialTimeout converts DialTimeoutMS to a duration.
func (s SpeechConfig) DialTimeout() time.Duration {
	return time.Duration(s.DialTimeoutMS) * time.Millisecond
}

// FinalizeTimeout converts FinalizeTimeoutMS to a duration.
func (s SpeechConfig) FinalizeTimeout() time.Duration {
	return time.Duration(s.FinalizeTimeoutMS) * time.Millisecond
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	ArtifactDump bool
	SpeechDump   bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
