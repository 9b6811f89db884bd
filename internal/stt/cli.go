package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"audioreport/internal/memory"
)

// ErrInsufficientMemory is returned by a loader when the memory budget on
// the target device is below the tier's footprint.
var ErrInsufficientMemory = errors.New("insufficient memory for model tier")

// Approximate resident size of each ggml tier during inference.
var tierFootprint = map[Tier]uint64{
	TierTiny:   273 << 20,
	TierBase:   388 << 20,
	TierSmall:  852 << 20,
	TierMedium: 2100 << 20,
	TierLarge:  3900 << 20,
}

// Footprint returns the approximate bytes a tier needs.
func Footprint(t Tier) uint64 { return tierFootprint[t] }

// ModelFile is the ggml file name for a tier.
func ModelFile(t Tier) string {
	if t == TierLarge {
		return "ggml-large-v3.bin"
	}
	return "ggml-" + t.String() + ".bin"
}

// CommandRunner executes a binary and returns stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// CLILoader runs whisper.cpp's whisper-cli per request. Loading checks the
// ggml file and the memory budget; the weights themselves are mapped by the
// subprocess and gone when it exits.
type CLILoader struct {
	binPath   string
	modelsDir string
	language  string
	device    string // auto, cpu or cuda
	probe     memory.Prober
	run       CommandRunner
}

// NewCLILoader creates a loader for whisper-cli.
func NewCLILoader(binPath, modelsDir, language, device string, probe memory.Prober) *CLILoader {
	return &CLILoader{
		binPath:   binPath,
		modelsDir: modelsDir,
		language:  language,
		device:    device,
		probe:     probe,
		run:       runCommand,
	}
}

// WithRunner replaces the command runner. Used by tests.
func (l *CLILoader) WithRunner(run CommandRunner) *CLILoader {
	l.run = run
	return l
}

func (l *CLILoader) Name() string { return "whisper-cli" }

func (l *CLILoader) Load(ctx context.Context, tier Tier) (Model, error) {
	path := filepath.Join(l.modelsDir, ModelFile(tier))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file for %s: %w", tier, err)
	}

	var snap memory.Snapshot
	if l.probe != nil {
		snap = l.probe.Snapshot(ctx)
	}
	dev := DeviceCPU
	switch l.device {
	case "cuda":
		dev = DeviceAccelerator
	case "auto":
		if snap.AcceleratorAvailable {
			dev = DeviceAccelerator
		}
	}

	if budget, ok := snap.Budget(dev == DeviceAccelerator); ok && budget < Footprint(tier) {
		return nil, fmt.Errorf("%w: %s needs %d MiB, %d MiB free on %s",
			ErrInsufficientMemory, tier, Footprint(tier)>>20, budget>>20, dev)
	}

	return &cliModel{loader: l, path: path, device: dev}, nil
}

type cliModel struct {
	loader *CLILoader
	path   string
	device Device
	closed bool
}

func (m *cliModel) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if m.closed {
		return "", errReleased
	}
	args := []string{"-m", m.path, "-f", audioPath, "-nt"}
	if m.loader.language != "" {
		args = append(args, "-l", m.loader.language)
	}
	if m.device == DeviceCPU {
		args = append(args, "-ng")
	}
	out, err := m.loader.run(ctx, m.loader.binPath, args...)
	if err != nil {
		return "", fmt.Errorf("whisper-cli: %w", err)
	}
	return joinLines(string(out)), nil
}

// Offload is a no-op: device memory is owned by the finished subprocess.
func (m *cliModel) Offload(context.Context) error { return nil }

func (m *cliModel) Close() error {
	m.closed = true
	return nil
}

func (m *cliModel) Device() Device { return m.device }

// joinLines flattens whisper-cli's segment-per-line output.
func joinLines(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
