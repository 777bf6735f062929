package config

// DefaultTokenEnv names the environment variable consulted when api.token is unset.
const DefaultTokenEnv = "INSPECTOR_TOKEN"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://127.0.0.1:5000",
			TokenEnv:  DefaultTokenEnv,
			TimeoutMS: 15000,
			RateLimit: 20,
			Burst:     20,
		},
		Upload: UploadConfig{Concurrency: 1},
		Counts: CountsConfig{Concurrency: 8},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Camera: CameraConfig{
			PreviewCmd: []string{
				"ffmpeg", "-loglevel", "error",
				"-f", "v4l2", "-i", "/dev/video0",
				"-f", "mjpeg", "-q:v", "4", "-",
			},
			FrameTimeoutMS: 3000,
		},
		Speech: SpeechConfig{
			Enable:               true,
			Endpoint:             "speech.googleapis.com:443",
			LanguageCode:         "en-US",
			AutomaticPunctuation: true,
			DialTimeoutMS:        3000,
			FinalizeTimeoutMS:    5000,
		},
		Log:   LogConfig{Level: "info"},
		Debug: DebugConfig{},
	}
}
