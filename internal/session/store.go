package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentrun/internal/ids"
)

// Store owns every session's directory and per-session lock, per the
// design note that the session store is the sole owner of session.jsonl
// and metadata.json (§5).
type Store struct {
	root string

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	mu         sync.Mutex
	reconciled bool
	meta       Metadata
	cache      []Record // nil when the context cache is cold/invalidated
}

func New(root string) *Store {
	return &Store{root: root, sessions: make(map[string]*sessionState)}
}

func (s *Store) dir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *Store) state(id string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		st = &sessionState{}
		s.sessions[id] = st
	}
	return st
}

// CreateOptions overrides the defaults used by Create.
type CreateOptions struct {
	Model     string
	Name      string
	Source    Source
	CronJobID string
}

// Create mints a new session ID, creates its directory, writes an empty
// JSONL log, and initializes metadata.
func (s *Store) Create(opts CreateOptions) (*Metadata, error) {
	id := ids.NewSessionID()
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session.jsonl"), nil, 0o644); err != nil {
		return nil, fmt.Errorf("create session log: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	source := opts.Source
	if source == "" {
		source = SourceInteractive
	}

	now := time.Now().UTC()
	meta := Metadata{
		ID:            id,
		CreatedAt:     now,
		LastMessageAt: now,
		MessageCount:  0,
		NextSeq:       1,
		Model:         opts.Model,
		Name:          name,
		Source:        source,
		CronJobID:     opts.CronJobID,
	}
	if err := writeMetadataAtomic(dir, meta); err != nil {
		return nil, err
	}

	st := s.state(id)
	st.mu.Lock()
	st.meta = meta
	st.reconciled = true
	st.cache = []Record{}
	st.mu.Unlock()

	return &meta, nil
}

// Get returns the session's metadata, reconciling nextSeq against the
// on-disk log on first access per process.
func (s *Store) Get(id string) (*Metadata, error) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := s.reconcileLocked(id, st); err != nil {
		return nil, err
	}
	meta := st.meta
	return &meta, nil
}

// reconcileLocked must be called with st.mu held.
func (s *Store) reconcileLocked(id string, st *sessionState) error {
	if st.reconciled {
		return nil
	}
	dir := s.dir(id)
	meta, err := readMetadata(dir)
	if err != nil {
		return err
	}
	records, err := readRecords(dir)
	if err != nil {
		return err
	}
	maxSeq := 0
	for _, r := range records {
		if r.Seq > maxSeq {
			maxSeq = r.Seq
		}
	}
	if maxSeq+1 > meta.NextSeq {
		meta.NextSeq = maxSeq + 1
		if err := writeMetadataAtomic(dir, meta); err != nil {
			return err
		}
	}
	st.meta = meta
	st.cache = records
	st.reconciled = true
	return nil
}

func readMetadata(dir string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}
	return meta, nil
}

func writeMetadataAtomic(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "metadata-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp metadata: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp metadata: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, "metadata.json")); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// readRecords reads session.jsonl, silently discarding a trailing
// non-terminated partial line so a crash mid-append never loses earlier
// complete records.
func readRecords(dir string) ([]Record, error) {
	f, err := os.Open(filepath.Join(dir, "session.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			// A malformed line can only be a trailing partial write;
			// discard it and stop, per the crash-safety invariant.
			break
		}
		records = append(records, r)
	}
	return records, nil
}

// List scans the sessions root with bounded concurrency and returns
// lightweight items sorted by LastMessageAt descending.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions dir: %w", err)
	}

	const maxConcurrency = 8
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var metas []Metadata

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			meta, err := readMetadata(s.dir(id))
			if err != nil {
				return
			}
			mu.Lock()
			metas = append(metas, meta)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].LastMessageAt.After(metas[j].LastMessageAt)
	})
	return metas, nil
}

// Delete removes a session's directory entirely.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return os.RemoveAll(s.dir(id))
}
