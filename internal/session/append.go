package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppendMessage assigns seq/timestamp, appends the record to session.jsonl,
// and atomically updates metadata.json. If the JSONL append succeeds but
// the metadata write fails, reconciliation and the context cache are
// invalidated so the next operation rebuilds from disk rather than trust
// in-memory state that may now disagree with it.
func (s *Store) AppendMessage(id string, input Record) (Record, error) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.reconcileLocked(id, st); err != nil {
		return Record{}, err
	}

	record := input
	record.Seq = st.meta.NextSeq
	record.Timestamp = time.Now().UTC()
	record.SchemaVersion = schemaVersion
	if record.RecordType == "" {
		record.RecordType = "message"
	}

	dir := s.dir(id)
	if err := appendJSONLine(dir, record); err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}

	st.meta.NextSeq++
	st.meta.MessageCount++
	st.meta.LastMessageAt = record.Timestamp
	if err := writeMetadataAtomic(dir, st.meta); err != nil {
		st.reconciled = false
		st.cache = nil
		return record, fmt.Errorf("write metadata: %w", err)
	}

	if st.cache != nil {
		st.cache = append(st.cache, record)
	}
	return record, nil
}

// AppendCompaction appends a pre-built Compaction record the same way
// AppendMessage does, without incrementing MessageCount (compaction
// overlays are not user/assistant turns).
func (s *Store) AppendCompaction(id string, record Record) (Record, error) {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.reconcileLocked(id, st); err != nil {
		return Record{}, err
	}

	record.RecordType = "compaction"
	record.Seq = st.meta.NextSeq
	record.Timestamp = time.Now().UTC()
	record.SchemaVersion = schemaVersion

	dir := s.dir(id)
	if err := appendJSONLine(dir, record); err != nil {
		return Record{}, fmt.Errorf("append compaction: %w", err)
	}

	st.meta.NextSeq++
	if err := writeMetadataAtomic(dir, st.meta); err != nil {
		st.reconciled = false
		st.cache = nil
		return record, fmt.Errorf("write metadata: %w", err)
	}
	if st.cache != nil {
		st.cache = append(st.cache, record)
	}
	return record, nil
}

func appendJSONLine(dir string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(filepath.Join(dir, "session.jsonl"), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// RecordTurnMetrics accumulates per-turn statistics into metadata.metrics.
func (s *Store) RecordTurnMetrics(id string, durationMs int64, inputTokens, outputTokens, toolCalls int) error {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := s.reconcileLocked(id, st); err != nil {
		return err
	}
	st.meta.Metrics.TotalTurns++
	st.meta.Metrics.TotalTokens += int64(inputTokens + outputTokens)
	st.meta.Metrics.TotalToolCalls += toolCalls
	st.meta.Metrics.TotalDurationMs += durationMs
	return writeMetadataAtomic(s.dir(id), st.meta)
}
