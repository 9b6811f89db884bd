package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// AudioDuration reads the playback length of WAV and FLAC files from their
// headers. ok is false for other formats, which need a full decoder.
func AudioDuration(path string) (d time.Duration, ok bool, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		d, err = wavDuration(path)
	case ".flac":
		d, err = flacDuration(path)
	default:
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return d, true, nil
}

func wavDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("invalid wav file: %w", err)
	}
	frame := int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if frame == 0 || dec.SampleRate == 0 {
		return 0, fmt.Errorf("wav header has no sample format")
	}
	samples := dec.PCMLen() / frame
	if samples == 0 {
		return 0, fmt.Errorf("wav file has no audio")
	}
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate), nil
}

func flacDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return 0, fmt.Errorf("invalid flac file: %w", err)
	}

	info := stream.Info
	if info.SampleRate == 0 {
		return 0, fmt.Errorf("flac stream has zero sample rate")
	}
	if info.NSamples == 0 {
		return 0, fmt.Errorf("flac file has no audio")
	}
	return time.Duration(info.NSamples) * time.Second / time.Duration(info.SampleRate), nil
}
