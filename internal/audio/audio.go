// Package audio plays bell sounds and sets the output volume.
//
// Two backends exist:
//   - alsa: shells out to amixer/aplay, one process per playback
//   - pulse: decodes WAV/FLAC in-process and streams to a PulseAudio sink
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrNotFound means the audio file does not exist.
	ErrNotFound = errors.New("audio file not found")
	// ErrPlayback means the backend ran but reported failure.
	ErrPlayback = errors.New("playback failed")
	// ErrUnsupported means the file format or channel layout can't be played.
	ErrUnsupported = errors.New("unsupported audio format")
)

// Player plays one file synchronously. It returns only when playback has
// finished or failed.
type Player interface {
	Play(ctx context.Context, path, device string) error
}

// VolumeControl sets the output volume in percent (0..100).
type VolumeControl interface {
	SetVolume(ctx context.Context, percent int) error
}

type Backend interface {
	Player
	VolumeControl
}

// SetVolumeBestEffort applies the volume and ignores any failure: a missing
// mixer tool must never stop the bell from ringing.
func SetVolumeBestEffort(ctx context.Context, vc VolumeControl, percent int) {
	if vc == nil {
		return
	}
	_ = vc.SetVolume(ctx, percent)
}

// New returns the backend registered under kind ("alsa" or "pulse").
// A nil fs means the OS filesystem.
func New(kind string, fs afero.Fs) (Backend, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "alsa":
		return NewALSA(fs), nil
	case "pulse":
		return NewPulse(fs), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", kind)
	}
}

// requireFile returns ErrNotFound unless path names an existing regular file.
func requireFile(fs afero.Fs, path string) error {
	fi, err := fs.Stat(path)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}
