package session

import (
	"fmt"
	"strings"
)

const titlePromptTemplate = "Summarize the following exchange in at most six words, as a" +
	" plain title with no punctuation at the end:\n\nUser: %s\nAssistant: %s"

// TitleGenerator calls out to the model to produce a short title; it
// returns the raw completion text.
type TitleGenerator func(prompt string) (string, error)

// GenerateTitle renames a session from its default placeholder once the
// first turn completes. It is a no-op if the session has already been
// renamed (manually or by a prior turn). On any failure it falls back to
// a truncated prefix of the user's message rather than leaving the
// default name in place.
func (s *Store) GenerateTitle(id, userText, assistantText string, generate TitleGenerator) error {
	meta, err := s.Get(id)
	if err != nil {
		return err
	}
	if meta.Name != DefaultName {
		return nil
	}

	title := fallbackTitle(userText)
	if generate != nil {
		prompt := fmt.Sprintf(titlePromptTemplate, userText, assistantText)
		if raw, err := generate(prompt); err == nil {
			if normalized := normalizeTitle(raw); normalized != "" {
				title = normalized
			}
		}
	}

	return s.Rename(id, title)
}

// normalizeTitle collapses the generator's completion to a single line of
// at most six words.
func normalizeTitle(raw string) string {
	line := strings.TrimSpace(strings.SplitN(raw, "\n", 2)[0])
	line = strings.Trim(line, `"'`)
	if line == "" {
		return ""
	}
	words := strings.Fields(line)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}

// fallbackTitle truncates userText to a 60-char single-line prefix.
func fallbackTitle(userText string) string {
	line := strings.TrimSpace(strings.SplitN(userText, "\n", 2)[0])
	if line == "" {
		return DefaultName
	}
	const max = 60
	r := []rune(line)
	if len(r) <= max {
		return line
	}
	return string(r[:max]) + "..."
}

// Rename sets a session's display name.
func (s *Store) Rename(id, name string) error {
	st := s.state(id)
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := s.reconcileLocked(id, st); err != nil {
		return err
	}
	st.meta.Name = name
	return writeMetadataAtomic(s.dir(id), st.meta)
}
