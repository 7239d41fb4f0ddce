// Package rules implements the reply rule model: an ordered set of
// trigger-to-payload mappings and the matcher that evaluates incoming
// messages against it.
//
// Matching semantics:
//   - exact: trigger equals the message, byte for byte;
//   - fuzzy: case-insensitive substring containment;
//   - regex: partial match of the compiled pattern against the raw
//     message (the pattern is anchored only if it anchors itself).
//
// The set is scanned in insertion order and the first enabled rule
// that matches wins; disabled rules are kept but skipped. Seq numbers
// identify rules for management commands and are never reused.
//
// Regex patterns are compiled when a rule is created (AddRegex) or
// loaded (Store.Load). A pattern that does not compile is rejected at
// creation; one found in a hand-edited file disables its rule. The
// matcher therefore never deals with compile failure.
//
// Store persists the set as JSON and transparently migrates the two
// legacy file shapes of older releases, preserving key order so
// precedence survives the migration.
package rules
