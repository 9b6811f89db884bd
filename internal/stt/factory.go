package stt

import (
	"context"
	"fmt"

	"audioreport/internal/config"
	"audioreport/internal/logging"
	"audioreport/internal/memory"
)

// CreateLoader creates a model loader based on configuration
func CreateLoader(cfg *config.Config, probe memory.Prober) (Loader, error) {
	log := logging.Component("stt")

	switch cfg.STTBackend {
	case "cli", "":
		log.Info().
			Str("bin", cfg.WhisperCLIPath).
			Str("models_dir", cfg.WhisperModelsDir).
			Str("device", cfg.WhisperDevice).
			Msg("using whisper-cli backend")
		return NewCLILoader(cfg.WhisperCLIPath, cfg.WhisperModelsDir, cfg.WhisperLanguage, cfg.WhisperDevice, probe), nil
	case "server":
		dev := resolveDevice(cfg.WhisperDevice, probe)
		log.Info().
			Str("url", cfg.WhisperServerURL).
			Str("pattern", cfg.WhisperModelPattern).
			Str("device", string(dev)).
			Msg("using speech server backend")
		return NewServerLoader(cfg.WhisperServerURL, cfg.WhisperModelPattern, cfg.WhisperLanguage, "", dev), nil
	default:
		return nil, fmt.Errorf("unsupported STT backend: %s. Supported: cli, server", cfg.STTBackend)
	}
}

func resolveDevice(setting string, probe memory.Prober) Device {
	switch setting {
	case "cuda":
		return DeviceAccelerator
	case "cpu":
		return DeviceCPU
	}
	if probe != nil && probe.Snapshot(context.Background()).AcceleratorAvailable {
		return DeviceAccelerator
	}
	return DeviceCPU
}
