package run

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/synrais/ROLL-GO/pkg/history"
	"github.com/synrais/ROLL-GO/pkg/logging"
	"github.com/synrais/ROLL-GO/pkg/player"
	"github.com/synrais/ROLL-GO/pkg/table"
)

var log = logging.New("RUN")

// Launcher plays one media file.
type Launcher interface {
	Play(ctx context.Context, media string) (player.Result, error)
}

// Recorder stores draws.
type Recorder interface {
	Add(rec history.Record) (history.Record, error)
}

// Runner plays selections and records them. History and NowPlayingFile are
// optional.
type Runner struct {
	Player         Launcher
	History        Recorder
	NowPlayingFile string

	mu   sync.Mutex
	last history.Record
}

// Last returns the most recent record handled by this runner.
func (r *Runner) Last() history.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Play launches the player for sel and records the draw. Playback failures
// are logged and reflected in Record.Played; they are never returned.
func (r *Runner) Play(ctx context.Context, sel table.Selection, source string) history.Record {
	if !sel.HasVideo() {
		log.Printf("No video for %d: %s", sel.Number, sel.Message)
		return r.Record(sel, source, false)
	}

	log.Printf("Now Playing %d: %s", sel.Number, sel.Video())
	r.writeNowPlaying(sel)

	played := false
	res, err := r.Player.Play(ctx, sel.Video())
	switch {
	case err != nil:
		log.Errorf("playback of %s: %v", sel.Video(), err)
	case !res.Success:
		log.Errorf("playback of %s exited with status %d", sel.Video(), res.ExitCode)
	default:
		played = true
	}
	return r.Record(sel, source, played)
}

// Record stores sel without playing it.
func (r *Runner) Record(sel table.Selection, source string, played bool) history.Record {
	rec := history.Record{
		Number:    sel.Number,
		VideoPath: sel.Video(),
		Message:   sel.Message,
		Source:    source,
		Played:    played,
	}
	if r.History != nil {
		stored, err := r.History.Add(rec)
		if err != nil {
			log.Errorf("history: %v", err)
		} else {
			rec = stored
		}
	}

	r.mu.Lock()
	r.last = rec
	r.mu.Unlock()
	return rec
}

// writeNowPlaying writes "N - path" to the now playing file.
func (r *Runner) writeNowPlaying(sel table.Selection) {
	if r.NowPlayingFile == "" {
		return
	}
	entry := fmt.Sprintf("%d - %s", sel.Number, sel.Video())
	if err := os.WriteFile(r.NowPlayingFile, []byte(entry), 0644); err != nil {
		log.Printf("Failed to write %s: %v", r.NowPlayingFile, err)
	}
}
