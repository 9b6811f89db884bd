package stt

//go:generate mockgen -source=interface.go -destination=mock_stt/mock_stt.go -package=mock_stt

import "context"

// Device is where a loaded model runs.
type Device string

const (
	DeviceCPU         Device = "cpu"
	DeviceAccelerator Device = "accelerator"
)

// Model is a loaded speech model. Offload frees device memory; Close drops
// whatever host resources remain. Both must tolerate being called once each
// after a failed Transcribe.
type Model interface {
	// Transcribe reads the audio file and returns raw text
	Transcribe(ctx context.Context, audioPath string) (string, error)

	// Offload moves the model off the accelerator
	Offload(ctx context.Context) error

	// Close releases the model
	Close() error

	// Device returns where the model runs
	Device() Device
}

// Loader brings a tier into memory. A failed Load must leave nothing
// resident.
type Loader interface {
	// Load loads tier and returns the model
	Load(ctx context.Context, tier Tier) (Model, error)

	// Name returns the name of the backend (e.g., "whisper-cli", "speech-server")
	Name() string
}
