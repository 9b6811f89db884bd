package stt

import "time"

// Result represents the result of a speech-to-text transcription
type Result struct {
	Text     string        // The transcribed text, trimmed
	Tier     Tier          // Tier of the model that produced it
	Device   Device        // Where inference ran
	Backend  string        // Loader name (e.g., "whisper-cli", "speech-server")
	Duration time.Duration // Inference wall time
}
