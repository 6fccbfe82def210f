// Package script turns raw script lines into a synthesized compilation unit.
//
// A script is a sequence of lines whose first line is the version marker.
// Directive lines (comment-style prefixes) declare namespace imports, native
// library references and section boundaries; all other lines are statements
// of the entry point or, after the extensions marker, unit members.
package script

import "unicode/utf16"

// VersionMarker must be the exact first line of every script.
const VersionMarker = "//MCCScript 1.0"

// ---------------------------------------------------------------------------
// Content hash
// ---------------------------------------------------------------------------

// Hash seeds. These are frozen: changing them invalidates every cache key
// computed by earlier releases.
const (
	hashSeed       uint64 = 3074457345618258791
	hashMultiplier uint64 = 3074457345618258799
)

// Script is an immutable, named sequence of source lines.
type Script struct {
	Name  string
	Lines []string
}

// New copies lines into a new Script.
func New(name string, lines []string) *Script {
	cp := make([]string, len(lines))
	copy(cp, lines)
	return &Script{Name: name, Lines: cp}
}

// Hash returns the content hash of the script lines.
func (s *Script) Hash() uint64 {
	return Hash(s.Lines)
}

// Hash computes the 64-bit rolling hash of an ordered line sequence. Every
// UTF-16 code unit of every line is folded in, followed by a line feed per
// line, keeping keys stable across releases.
func Hash(lines []string) uint64 {
	h := hashSeed
	for _, line := range lines {
		for _, cu := range utf16.Encode([]rune(line)) {
			h += uint64(cu)
			h *= hashMultiplier
		}
		h += '\n'
		h *= hashMultiplier
	}
	return h
}
