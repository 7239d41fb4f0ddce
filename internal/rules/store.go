package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yahayao/replybot/internal/logging"
)

// Store persists a rule set as JSON at a fixed path. The parent
// directory is created on first run.
type Store struct {
	mu   sync.Mutex
	path string
}

type fileData struct {
	NextSeq int     `json:"next_seq"`
	Rules   []*Rule `json:"rules"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (st *Store) Path() string { return st.path }

// Load reads the rule file and returns the set. A missing file is not
// an error: an empty file is written so later saves have a home.
// Both legacy file shapes from older releases (keyword -> reply
// string, keyword -> config object) load transparently.
func (st *Store) Load() (*Set, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	log := logging.GetLogger("rules")

	if err := os.MkdirAll(filepath.Dir(st.path), 0755); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			s := NewSet()
			return s, st.save(s)
		}
		return nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, fmt.Errorf("rule file %s: %w", st.path, err)
	}

	s := NewSet()
	if isCurrentFormat(top) {
		var fd fileData
		if err := json.Unmarshal(b, &fd); err != nil {
			return nil, fmt.Errorf("rule file %s: %w", st.path, err)
		}
		s.rules = fd.Rules
		s.nextSeq = fd.NextSeq
	} else {
		// old plugin format: top-level keyword map
		migrated, err := migrateLegacy(b)
		if err != nil {
			return nil, fmt.Errorf("rule file %s: %w", st.path, err)
		}
		s.rules = migrated
		log.Info().Int("rules", len(migrated)).Msg("migrated legacy rule file")
	}

	for _, r := range s.rules {
		if r.Seq >= s.nextSeq {
			s.nextSeq = r.Seq + 1
		}
		if err := r.compile(); err != nil {
			// hand-edited file with a broken pattern: keep the rule
			// around but never let it match
			r.Enabled = false
			log.Warn().Int("seq", r.Seq).Str("pattern", r.Trigger).Err(err).
				Msg("rule disabled: pattern does not compile")
		}
	}
	return s, nil
}

// isCurrentFormat distinguishes the current file shape from the
// legacy keyword maps. The presence of a "rules" key alone is not
// enough: a legacy file may use "rules" as a keyword, so the value
// must actually be an array (or null, for an empty set).
func isCurrentFormat(top map[string]json.RawMessage) bool {
	raw, ok := top["rules"]
	if !ok {
		return false
	}
	var arr []json.RawMessage
	return json.Unmarshal(raw, &arr) == nil
}

func (st *Store) Save(s *Set) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.save(s)
}

func (st *Store) save(s *Set) error {
	b, err := json.MarshalIndent(fileData{NextSeq: s.nextSeq, Rules: s.rules}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(st.path, b, 0644)
}

// legacyEntry is the v2 legacy file shape. The oldest shape
// is a bare string (text reply, exact match).
type legacyEntry struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	Pattern    string `json:"pattern"`
	ImagePath  string `json:"image_path"`
	ExactMatch *bool  `json:"exact_match"`
	Enabled    *bool  `json:"enabled"`
}

// migrateLegacy converts a keyword map file into ordered rules.
// encoding/json maps lose key order, which here is match precedence,
// so the object is walked token by token instead.
func migrateLegacy(data []byte) ([]*Rule, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // opening '{'
		return nil, err
	}

	var out []*Rule
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}

		r := &Rule{Seq: len(out) + 1, Enabled: true}

		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			// oldest format: keyword -> reply string
			r.Trigger, r.Mode, r.Type, r.Content = key, ModeExact, ReplyText, text
			out = append(out, r)
			continue
		}

		var e legacyEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		if e.Enabled != nil {
			r.Enabled = *e.Enabled
		}
		switch e.Type {
		case "regex":
			r.Mode = ModeRegex
			r.Type = ReplyText
			r.Trigger = e.Pattern
			if r.Trigger == "" {
				r.Trigger = key
			}
		case "image", "图片":
			r.Mode = legacyMode(e.ExactMatch)
			r.Type = ReplyImage
			r.Trigger = key
			r.ImageFile = e.ImagePath
		case "mixed", "混合":
			r.Mode = legacyMode(e.ExactMatch)
			r.Type = ReplyMixed
			r.Trigger = key
			r.ImageFile = e.ImagePath
		default:
			r.Mode = legacyMode(e.ExactMatch)
			r.Type = ReplyText
			r.Trigger = key
		}
		r.Content = e.Content
		out = append(out, r)
	}
	return out, nil
}

func legacyMode(exact *bool) Mode {
	if exact != nil && !*exact {
		return ModeFuzzy
	}
	return ModeExact
}
