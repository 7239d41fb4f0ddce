package rules

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAssignsSequentialSeqs(t *testing.T) {
	s := NewSet()
	r1, err := s.Add("a", ReplyText, "1", "")
	require.NoError(t, err)
	r2, err := s.Add("b", ReplyText, "2", "")
	require.NoError(t, err)

	assert.Equal(t, 1, r1.Seq)
	assert.Equal(t, 2, r2.Seq)
	assert.Equal(t, ModeExact, r1.Mode, "keyword rules default to exact")
	assert.True(t, r1.Enabled, "new rules start enabled")
}

func TestSeqsAreNeverReused(t *testing.T) {
	s := NewSet()
	_, err := s.Add("a", ReplyText, "1", "")
	require.NoError(t, err)
	r2, err := s.Add("b", ReplyText, "2", "")
	require.NoError(t, err)

	_, err = s.Delete(r2.Seq)
	require.NoError(t, err)

	r3, err := s.Add("c", ReplyText, "3", "")
	require.NoError(t, err)
	assert.Equal(t, 3, r3.Seq, "deleted seq must not come back")
}

func TestAddRejectsEmptyTrigger(t *testing.T) {
	s := NewSet()
	_, err := s.Add("   ", ReplyText, "x", "")
	assert.ErrorIs(t, err, ErrEmptyTrigger)
	_, err = s.AddRegex("", "x")
	assert.ErrorIs(t, err, ErrEmptyTrigger)
}

func TestAddRegexRejectsMalformedPattern(t *testing.T) {
	s := NewSet()
	_, err := s.AddRegex("[unclosed", "x")
	require.ErrorIs(t, err, ErrBadPattern)
	assert.Equal(t, 0, s.Len(), "rejected rule must not be stored")

	// the failed add must not burn a seq
	r, err := s.Add("ok", ReplyText, "x", "")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Seq)
}

func TestDeleteUnknownSeq(t *testing.T) {
	s := NewSet()
	_, err := s.Delete(7)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.SetEnabled(7, true)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ToggleMode(7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleModeFlipsExactAndFuzzy(t *testing.T) {
	s := NewSet()
	r, err := s.Add("k", ReplyText, "v", "")
	require.NoError(t, err)

	got, err := s.ToggleMode(r.Seq)
	require.NoError(t, err)
	assert.Equal(t, ModeFuzzy, got.Mode)

	got, err = s.ToggleMode(r.Seq)
	require.NoError(t, err)
	assert.Equal(t, ModeExact, got.Mode)
}

func TestToggleModeRefusesRegexRules(t *testing.T) {
	s := NewSet()
	r, err := s.AddRegex("^x$", "v")
	require.NoError(t, err)

	_, err = s.ToggleMode(r.Seq)
	assert.ErrorIs(t, err, ErrRegexMode)
	assert.Equal(t, ModeRegex, r.Mode)
}

func TestRulesReturnsPrecedenceOrder(t *testing.T) {
	s := NewSet()
	_, err := s.Add("b", ReplyText, "2", "")
	require.NoError(t, err)
	_, err = s.Add("a", ReplyText, "1", "")
	require.NoError(t, err)

	rs := s.Rules()
	require.Len(t, rs, 2)
	assert.Equal(t, "b", rs[0].Trigger, "insertion order, not alphabetical")
	assert.Equal(t, "a", rs[1].Trigger)
}

func TestRuleStringTruncatesOnRunes(t *testing.T) {
	s := NewSet()
	long := "ab这是一个很长的中文回复内容这是一个很长的中文回复内容"
	r, err := s.Add("k", ReplyText, long, "")
	require.NoError(t, err)

	row := r.String()
	assert.True(t, utf8.ValidString(row), "list rows must stay valid UTF-8: %q", row)
	assert.Contains(t, row, "...")
	assert.NotContains(t, row, long, "long replies are shortened in listings")
}

func TestRuleStringKeepsShortContentIntact(t *testing.T) {
	s := NewSet()
	r, err := s.Add("k", ReplyText, "你好", "")
	require.NoError(t, err)

	assert.Contains(t, r.String(), "你好")
	assert.NotContains(t, r.String(), "...")
}
