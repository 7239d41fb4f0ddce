package rules

import (
	"fmt"
	"strings"
)

// Set is an ordered collection of rules. Insertion order is the
// precedence order: on a match the earliest enabled rule wins.
// Seq numbers are stable management handles and are never reused,
// even after deletes.
type Set struct {
	rules   []*Rule
	nextSeq int
}

func NewSet() *Set {
	return &Set{nextSeq: 1}
}

// Add appends a keyword rule. New keyword rules start enabled and in
// exact mode.
func (s *Set) Add(trigger string, typ ReplyType, content, imageFile string) (*Rule, error) {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return nil, ErrEmptyTrigger
	}
	r := &Rule{
		Seq:       s.take(),
		Trigger:   trigger,
		Mode:      ModeExact,
		Type:      typ,
		Content:   content,
		ImageFile: imageFile,
		Enabled:   true,
	}
	s.rules = append(s.rules, r)
	return r, nil
}

// AddRegex appends a regex rule. The pattern is compiled here so a
// malformed pattern is rejected at creation time and the matcher never
// sees one.
func (s *Set) AddRegex(pattern, content string) (*Rule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, ErrEmptyTrigger
	}
	r := &Rule{
		Seq:     s.take(),
		Trigger: pattern,
		Mode:    ModeRegex,
		Type:    ReplyText,
		Content: content,
		Enabled: true,
	}
	if err := r.compile(); err != nil {
		s.nextSeq-- // seq was not used after all
		return nil, err
	}
	s.rules = append(s.rules, r)
	return r, nil
}

// Delete removes the rule with the given seq and returns it.
func (s *Set) Delete(seq int) (*Rule, error) {
	for i, r := range s.rules {
		if r.Seq == seq {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNotFound, seq)
}

// SetEnabled flips the enabled flag. A disabled rule is retained but
// skipped by Match until re-enabled.
func (s *Set) SetEnabled(seq int, on bool) (*Rule, error) {
	r, ok := s.Get(seq)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	r.Enabled = on
	return r, nil
}

// ToggleMode switches a keyword rule between exact and fuzzy matching.
// Regex rules refuse the toggle.
func (s *Set) ToggleMode(seq int) (*Rule, error) {
	r, ok := s.Get(seq)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, seq)
	}
	switch r.Mode {
	case ModeRegex:
		return nil, ErrRegexMode
	case ModeExact:
		r.Mode = ModeFuzzy
	default:
		r.Mode = ModeExact
	}
	return r, nil
}

func (s *Set) Get(seq int) (*Rule, bool) {
	for _, r := range s.rules {
		if r.Seq == seq {
			return r, true
		}
	}
	return nil, false
}

func (s *Set) Len() int { return len(s.rules) }

// Rules returns the rules in precedence order. The slice is a copy,
// the rules are not.
func (s *Set) Rules() []*Rule {
	out := make([]*Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Match scans the set in order and returns the first enabled rule
// whose trigger matches msg. At most one rule fires.
func (s *Set) Match(msg string) (*Rule, bool) {
	for _, r := range s.rules {
		if !r.Enabled {
			continue
		}
		if r.Matches(msg) {
			return r, true
		}
	}
	return nil, false
}

func (s *Set) take() int {
	n := s.nextSeq
	s.nextSeq++
	return n
}
