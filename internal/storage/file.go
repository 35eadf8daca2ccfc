package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "gamenewsbot/pkg/logx"
)

const fileCompactEvery = 500

// fileStore keeps dispatch history without a database.
//
// Files:
//   - <prefix>.posted.snapshot.json (latest dispatch per link, unix milli)
//   - <prefix>.posted.journal.jsonl (append-only, fsync'ed per record)
//   - <prefix>.promo.json           (promo cooldown, replaced atomically)
//
// The journal is folded into the snapshot every fileCompactEvery appends
// and after each prune.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	promoPath    string
	journal      *os.File

	// latest dispatch time per link; windowed lookups only need the maximum.
	posted  map[string]int64
	appends int
}

type postedLine struct {
	Link string `json:"link"`
	At   int64  `json:"at"`
}

type promoFile struct {
	LastSent int64 `json:"last_sent"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".posted.snapshot.json"
	journalPath := prefix + ".posted.journal.jsonl"

	posted := map[string]int64{}
	if err := loadPostedSnapshot(snapPath, posted); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("posted snapshot unreadable; starting from journal", logx.String("path", snapPath), logx.Err(err))
	}
	if err := replayPostedJournal(journalPath, posted); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if cut, err := trimTornTail(jf); err != nil {
		_ = jf.Close()
		return nil, fmt.Errorf("posted journal: %w", err)
	} else if cut > 0 {
		log.Warn("posted journal had a torn last line; dropped it", logx.String("path", journalPath), logx.Int64("bytes", cut))
	}

	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("links", len(posted)))
	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		promoPath:    prefix + ".promo.json",
		journal:      jf,
		posted:       posted,
	}, nil
}

func (s *fileStore) PostedSince(ctx context.Context, link string, since time.Time) (bool, error) {
	_ = ctx
	link = strings.TrimSpace(link)
	if link == "" {
		return false, ErrEmptyLink
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, ErrClosed
	}
	at, ok := s.posted[link]
	return ok && at > since.UnixMilli(), nil
}

func (s *fileStore) AppendPosted(ctx context.Context, rec PostedRecord) error {
	_ = ctx
	link := strings.TrimSpace(rec.Link)
	if link == "" {
		return ErrEmptyLink
	}
	at := rec.DispatchedAt
	if at.IsZero() {
		at = time.Now()
	}
	line, err := json.Marshal(postedLine{Link: link, At: at.UnixMilli()})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	// One write per record; a torn line from a crash is skipped on replay.
	if _, err := s.journal.Write(line); err != nil {
		return err
	}
	if err := s.journal.Sync(); err != nil {
		return err
	}
	if at.UnixMilli() > s.posted[link] {
		s.posted[link] = at.UnixMilli()
	}
	s.appends++
	if s.appends%fileCompactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("posted journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) PrunePosted(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, ErrClosed
	}
	c := cutoff.UnixMilli()
	var n int64
	for k, at := range s.posted {
		if at < c {
			delete(s.posted, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.compactLocked()
}

func (s *fileStore) LoadPromoState(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return time.Time{}, false, ErrClosed
	}
	b, err := os.ReadFile(s.promoPath)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	var pf promoFile
	if err := json.Unmarshal(b, &pf); err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(pf.LastSent), true, nil
}

func (s *fileStore) SavePromoState(ctx context.Context, lastSent time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	return writeFileAtomic(s.promoPath, promoFile{LastSent: lastSent.UnixMilli()})
}

func (s *fileStore) Ping(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.compactLocked()
	if cerr := s.journal.Close(); err == nil {
		err = cerr
	}
	s.journal = nil
	return err
}

func (s *fileStore) compactLocked() error {
	if err := writeFileAtomic(s.snapshotPath, s.posted); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err := s.journal.Seek(0, 2)
	return err
}

func writeFileAtomic(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// trimTornTail cuts f back to its last newline so the next append starts
// on a fresh line. It returns the number of bytes removed.
func trimTornTail(f *os.File) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := st.Size()
	buf := make([]byte, 4096)
	for end := size; end > 0; {
		n := min(int64(len(buf)), end)
		if _, err := f.ReadAt(buf[:n], end-n); err != nil {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			keep := end - n + int64(i) + 1
			if keep == size {
				return 0, nil
			}
			return size - keep, f.Truncate(keep)
		}
		end -= n
	}
	if size == 0 {
		return 0, nil
	}
	return size, f.Truncate(0)
}

func loadPostedSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayPostedJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r postedLine
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Link == "" {
			continue
		}
		if r.At > out[r.Link] {
			out[r.Link] = r.At
		}
	}
	return sc.Err()
}
