package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const BucketDraws = "draws"

// ErrDisabled is returned by callers that run without a store.
var ErrDisabled = errors.New("history disabled")

// Where a draw came from.
const (
	SourceCLI     = "cli"
	SourceDisplay = "display"
	SourceHTTP    = "http"
)

// Record is one draw.
type Record struct {
	ID        uint64    `json:"id"`
	Time      time.Time `json:"time"`
	Number    int       `json:"number"`
	VideoPath string    `json:"video_path"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Played    bool      `json:"played"`
}

// Store is the on-disk draw log.
type Store struct {
	db *bolt.DB
}

// Open the history db at path, creating it and its bucket if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketDraws))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Add stores rec and returns it with ID (and Time, if unset) filled in.
func (s *Store) Add(rec Record) (Record, error) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketDraws))
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id
		v, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(itob(id), v)
	})
	return rec, err
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) Recent(limit int) ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketDraws)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(recs) >= limit {
				break
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// Stats counts draws per video path. Draws with no video count under "".
type Stats struct {
	Total   int
	ByVideo map[string]int
}

func (s *Store) Stats() (Stats, error) {
	st := Stats{ByVideo: make(map[string]int)}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketDraws)).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			st.Total++
			st.ByVideo[rec.VideoPath]++
			return nil
		})
	})
	return st, err
}

// String renders the stats with locale-grouped counts.
func (st Stats) String() string {
	p := message.NewPrinter(language.English)
	out := p.Sprintf("%d draws\n", st.Total)

	videos := make([]string, 0, len(st.ByVideo))
	for v := range st.ByVideo {
		videos = append(videos, v)
	}
	sort.Strings(videos)
	for _, v := range videos {
		name := v
		if name == "" {
			name = "(none)"
		}
		out += p.Sprintf("  %-24s %d\n", name, st.ByVideo[v])
	}
	return out
}

type csvRow struct {
	ID        uint64 `csv:"id"`
	Time      string `csv:"time"`
	Number    int    `csv:"number"`
	VideoPath string `csv:"video_path"`
	Message   string `csv:"message"`
	Source    string `csv:"source"`
	Played    bool   `csv:"played"`
}

// WriteCSV writes recs with a header row. Times are RFC3339.
func WriteCSV(w io.Writer, recs []Record) error {
	rows := make([]csvRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, csvRow{
			ID:        r.ID,
			Time:      r.Time.Format(time.RFC3339),
			Number:    r.Number,
			VideoPath: r.VideoPath,
			Message:   r.Message,
			Source:    r.Source,
			Played:    r.Played,
		})
	}
	return gocsv.Marshal(&rows, w)
}
