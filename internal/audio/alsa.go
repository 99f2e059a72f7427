package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// CommandRunner runs an external command to completion and returns its
// combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ALSA drives the alsa-utils command line tools.
type ALSA struct {
	fs  afero.Fs
	run CommandRunner

	// Mixer is the amixer simple control adjusted by SetVolume.
	Mixer string
}

func NewALSA(fs afero.Fs) *ALSA {
	return &ALSA{fs: fs, run: execRunner, Mixer: "Master"}
}

// WithRunner replaces the command runner. Intended for tests.
func (a *ALSA) WithRunner(run CommandRunner) *ALSA {
	a.run = run
	return a
}

// SetVolume runs "amixer sset <Mixer> N%".
func (a *ALSA) SetVolume(ctx context.Context, percent int) error {
	percent = min(max(percent, 0), 100)
	if _, err := a.run(ctx, "amixer", "sset", a.Mixer, strconv.Itoa(percent)+"%"); err != nil {
		return fmt.Errorf("amixer: %w", err)
	}
	return nil
}

// Play runs "aplay -q [-D device] path".
func (a *ALSA) Play(ctx context.Context, path, device string) error {
	if err := requireFile(a.fs, path); err != nil {
		return err
	}
	args := []string{"-q"}
	if device = strings.TrimSpace(device); device != "" {
		args = append(args, "-D", device)
	}
	args = append(args, path)

	out, err := a.run(ctx, "aplay", args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: aplay %s: %w (%s)", ErrPlayback, path, err, msg)
		}
		return fmt.Errorf("%w: aplay %s: %w", ErrPlayback, path, err)
	}
	return nil
}
