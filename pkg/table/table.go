package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/synrais/ROLL-GO/pkg/config"
	"github.com/synrais/ROLL-GO/pkg/rng"
)

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("invalid range table")

const InvalidMessage = "Invalid number"

// Entry maps the inclusive range Lo..Hi to a video and a message.
// {n} in Message is replaced by the drawn number.
type Entry struct {
	Name    string
	Lo      int
	Hi      int
	Video   string
	Message string
}

// Table partitions Min..Max into entries.
type Table struct {
	Min     int
	Max     int
	Entries []Entry
}

// Selection is the result of a lookup.
type Selection struct {
	Number    int     `json:"number"`
	VideoPath *string `json:"video_path"`
	Message   string  `json:"message"`
}

// HasVideo reports whether the selection points at a file to play.
func (s Selection) HasVideo() bool {
	return s.VideoPath != nil && *s.VideoPath != ""
}

// Video returns the video path or "".
func (s Selection) Video() string {
	if s.VideoPath == nil {
		return ""
	}
	return *s.VideoPath
}

func Default() Table {
	return Table{
		Min: 1,
		Max: 11,
		Entries: []Entry{
			{Name: "low", Lo: 1, Hi: 4, Video: "assets/video2.mp4", Message: "Number Of Inches: {n}"},
			{Name: "mid", Lo: 5, Hi: 7, Video: "assets/video1.mp4", Message: "Number Of Inches: {n}"},
			{Name: "high", Lo: 8, Hi: 10, Video: "assets/video3.mp4", Message: "Number Of Inches: {n}"},
			{Name: "top", Lo: 11, Hi: 11, Video: "assets/video4.mp4", Message: "Jackpot!"},
		},
	}
}

// FromConfig builds a table from [roll] and [range.*]. With no range
// sections the default table is fitted to the [roll] bounds. The result is
// validated.
func FromConfig(cfg *config.UserConfig) (Table, error) {
	if len(cfg.Ranges) == 0 {
		t := Default().Fit(cfg.Roll.Min, cfg.Roll.Max)
		return t, t.Validate()
	}

	t := Table{Min: cfg.Roll.Min, Max: cfg.Roll.Max}
	for name, rc := range cfg.Ranges {
		t.Entries = append(t.Entries, Entry{
			Name:    name,
			Lo:      rc.Lo,
			Hi:      rc.Hi,
			Video:   rc.Video,
			Message: rc.Message,
		})
	}
	t.sort()
	return t, t.Validate()
}

// Fit returns a copy of a contiguous table moved to lo..hi. Entries are
// clipped to the new bounds and dropped when they fall outside; the first and
// last remaining entries are stretched to lo and hi. When no entry overlaps
// the bounds, the one nearest to them covers the whole range.
func (t Table) Fit(lo, hi int) Table {
	out := Table{Min: lo, Max: hi}
	if hi < lo || len(t.Entries) == 0 {
		return out
	}

	src := Table{Entries: slices.Clone(t.Entries)}
	src.sort()
	for _, e := range src.Entries {
		if e.Hi < lo || e.Lo > hi {
			continue
		}
		if e.Lo < lo {
			e.Lo = lo
		}
		if e.Hi > hi {
			e.Hi = hi
		}
		out.Entries = append(out.Entries, e)
	}
	if len(out.Entries) == 0 {
		nearest := src.Entries[0]
		if lo > nearest.Hi {
			nearest = src.Entries[len(src.Entries)-1]
		}
		out.Entries = []Entry{nearest}
	}

	out.Entries[0].Lo = lo
	out.Entries[len(out.Entries)-1].Hi = hi
	return out
}

func (t *Table) sort() {
	slices.SortFunc(t.Entries, func(a, b Entry) bool {
		if a.Lo != b.Lo {
			return a.Lo < b.Lo
		}
		return a.Hi < b.Hi
	})
}

// Validate checks that the entries cover every integer in Min..Max exactly
// once.
func (t Table) Validate() error {
	if t.Max < t.Min {
		return fmt.Errorf("%w: max %d is below min %d", ErrInvalid, t.Max, t.Min)
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalid)
	}

	sorted := Table{Min: t.Min, Max: t.Max, Entries: slices.Clone(t.Entries)}
	sorted.sort()

	// next is not advanced past Max, where it would overflow
	next, full := t.Min, false
	for _, e := range sorted.Entries {
		switch {
		case e.Hi < e.Lo:
			return fmt.Errorf("%w: %s has hi %d below lo %d", ErrInvalid, e.label(), e.Hi, e.Lo)
		case e.Lo < t.Min || e.Hi > t.Max:
			return fmt.Errorf("%w: %s lies outside %d..%d", ErrInvalid, e.label(), t.Min, t.Max)
		case full || e.Lo < next:
			return fmt.Errorf("%w: %s overlaps at %d", ErrInvalid, e.label(), e.Lo)
		case e.Lo > next:
			return fmt.Errorf("%w: gap %d..%d", ErrInvalid, next, e.Lo-1)
		}
		if e.Hi == t.Max {
			full = true
		} else {
			next = e.Hi + 1
		}
	}
	if !full {
		return fmt.Errorf("%w: gap %d..%d", ErrInvalid, next, t.Max)
	}
	return nil
}

func (e Entry) label() string {
	if e.Name != "" {
		return fmt.Sprintf("range %q (%d..%d)", e.Name, e.Lo, e.Hi)
	}
	return fmt.Sprintf("range %d..%d", e.Lo, e.Hi)
}

// Lookup selects the entry containing n. Numbers outside Min..Max give a
// selection with no video and InvalidMessage.
func (t Table) Lookup(n int) Selection {
	if n >= t.Min && n <= t.Max {
		for _, e := range t.Entries {
			if n >= e.Lo && n <= e.Hi {
				video := e.Video
				return Selection{
					Number:    n,
					VideoPath: &video,
					Message:   strings.ReplaceAll(e.Message, "{n}", strconv.Itoa(n)),
				}
			}
		}
	}
	return Selection{Number: n, Message: InvalidMessage}
}

// Roll draws a number in Min..Max and looks it up.
func (t Table) Roll(g rng.Generator) Selection {
	return t.Lookup(g.Intn(t.Min, t.Max))
}

// String renders the table one range per line.
func (t Table) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d..%d\n", t.Min, t.Max)
	for _, e := range t.Entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "  %-8s %3d..%-3d %-24s %s\n", name, e.Lo, e.Hi, e.Video, e.Message)
	}
	return b.String()
}
