// Package player launches an external media player on a single file and
// waits for it to exit.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/synrais/ROLL-GO/pkg/config"
	"github.com/synrais/ROLL-GO/pkg/logging"
)

var log = logging.New("PLAYER")

// ErrNotFound means the player binary is not on PATH.
var ErrNotFound = errors.New("player binary not found")

// DefaultKillGrace is how long a cancelled player gets to exit after SIGTERM
// before its process group is killed.
const DefaultKillGrace = 3 * time.Second

// Player is an external player binary and the flags passed before the
// media path. KillGrace defaults to DefaultKillGrace when zero.
type Player struct {
	Binary    string
	Args      []string
	KillGrace time.Duration
}

// Result describes a finished playback.
type Result struct {
	Path     string
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
}

func (p *Player) grace() time.Duration {
	if p.KillGrace > 0 {
		return p.KillGrace
	}
	return DefaultKillGrace
}

func New(cfg config.PlayerConfig) *Player {
	p := &Player{Binary: cfg.Binary, Args: cfg.Args}
	if p.Binary == "" {
		p.Binary = config.DefaultPlayer
	}
	return p
}

// Resolve returns the absolute path of the player binary.
func (p *Player) Resolve() (string, error) {
	path, err := exec.LookPath(p.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p.Binary)
	}
	return path, nil
}

// Command builds the argument list for path: the configured flags followed by
// the media path.
func (p *Player) Command(media string) []string {
	args := make([]string, 0, len(p.Args)+1)
	args = append(args, p.Args...)
	return append(args, media)
}

// AbsPath canonicalizes a media path, falling back to the input when it
// cannot be resolved.
func AbsPath(media string) string {
	abs, err := filepath.Abs(media)
	if err != nil {
		return media
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Play runs the player on media and blocks until it exits or ctx is done.
// A non-zero exit is reported in Result, not as an error; the error is only
// set when the player could not be started. On cancel the process group gets
// SIGTERM, then SIGKILL after KillGrace, and the result is never a success.
func (p *Player) Play(ctx context.Context, media string) (Result, error) {
	log.Printf("Attempting to play video: %s", media)

	abs := AbsPath(media)
	res := Result{Path: abs, ExitCode: -1}
	log.Debugf("Absolute path: %s", abs)

	bin, err := p.Resolve()
	if err != nil {
		log.Errorf("%v", err)
		return res, err
	}
	log.Debugf("Using player path: %s", bin)

	cmd := exec.Command(bin, p.Command(abs)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// pipes held by escaped children are closed this long after exit
	cmd.WaitDelay = p.grace()
	setProcessGroup(cmd)

	log.Printf("Launching %s...", p.Binary)
	if err := cmd.Start(); err != nil {
		log.Errorf("failed to execute %s: %v", p.Binary, err)
		return res, fmt.Errorf("start %s: %w", p.Binary, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	cancelled := false
	select {
	case err = <-waitCh:
	case <-ctx.Done():
		cancelled = true
		log.Printf("Stopping %s", p.Binary)
		terminateProcessGroup(cmd)
		timer := time.NewTimer(p.grace())
		select {
		case err = <-waitCh:
		case <-timer.C:
			log.Printf("%s ignored SIGTERM, killing", p.Binary)
			killProcessGroup(cmd)
			err = <-waitCh
		}
		timer.Stop()
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}
	res.Success = err == nil && res.ExitCode == 0 && !cancelled

	switch {
	case cancelled:
		log.Printf("%s cancelled: %v", p.Binary, ctx.Err())
	case !res.Success:
		log.Printf("%s failed with status: %d", p.Binary, res.ExitCode)
		if res.Stderr != "" {
			log.Printf("Error output: %s", res.Stderr)
		}
		if res.Stdout != "" {
			log.Printf("Standard output: %s", res.Stdout)
		}
	default:
		log.Printf("%s finished", p.Binary)
	}
	return res, nil
}
