package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AllowedExtensions lists the upload formats a speech server with an ffmpeg
// front end accepts.
var AllowedExtensions = []string{".m4a", ".mp3", ".wav", ".aac", ".ogg", ".webm", ".flac", ".caf", ".aiff", ".aif"}

// CLIExtensions are the formats a stock whisper-cli build decodes without
// ffmpeg.
var CLIExtensions = []string{".wav", ".mp3", ".flac", ".ogg"}

// ExtensionsFor returns the accepted upload formats for an STT backend.
func ExtensionsFor(backend string) []string {
	if backend == "cli" {
		return CLIExtensions
	}
	return AllowedExtensions
}

// ValidateExtension checks the file name against allowed. A nil allowed
// means AllowedExtensions.
func ValidateExtension(filename string, allowed []string) error {
	if allowed == nil {
		allowed = AllowedExtensions
	}
	ext := strings.ToLower(filepath.Ext(filename))
	names := make([]string, len(allowed))
	for i, a := range allowed {
		if ext == a {
			return nil
		}
		names[i] = strings.TrimPrefix(a, ".")
	}
	return fmt.Errorf("unsupported audio format %q. Supported: %s", ext, strings.Join(names, ", "))
}

// SaveTemp writes src to a uniquely named file in dir (os.TempDir() when
// empty) and returns its path and a cleanup func that removes it. The file
// keeps the upload's extension so decoders can sniff the format.
func SaveTemp(dir string, src io.Reader, filename string) (path string, cleanup func(), err error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp3"
	}
	path = filepath.Join(dir, "audio_"+uuid.NewString()+ext)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup = func() { _ = os.Remove(path) }

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to save file: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to save file: %w", err)
	}
	return path, cleanup, nil
}
