package script

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidFormat is returned when the first line is not VersionMarker.
var ErrInvalidFormat = errors.New("script: invalid format, first line must be " + VersionMarker)

// Directive prefixes.
const (
	usingPrefix      = "//using"
	libraryPrefix    = "//dll "
	sectionPrefix    = "//MCCScript"
	extensionsSuffix = "Extensions"
)

// AutoReturn is appended to the main body when it has no return statement.
const AutoReturn = "return null;"

var returnPattern = regexp.MustCompile(`\breturn\b`)

// Sections is a script split into its directive and code parts. Every input
// line lands in exactly one of them; directive lines are consumed.
type Sections struct {
	Usings     []string
	Libraries  []string
	Main       []string
	Extensions []string

	// UsingLines, MainLines and ExtensionLines hold the 1-based script line
	// of each entry in the matching section (0 for synthesized lines).
	UsingLines     []int
	MainLines      []int
	ExtensionLines []int
}

// Preprocess validates the version marker and classifies every line.
func Preprocess(lines []string) (*Sections, error) {
	if len(lines) < 1 || lines[0] != VersionMarker {
		return nil, ErrInvalidFormat
	}

	s := &Sections{}
	inMain := true
	for i, line := range lines {
		lineNo := i + 1
		switch {
		case strings.HasPrefix(line, usingPrefix):
			s.Usings = append(s.Usings, strings.TrimSpace(strings.TrimPrefix(line, "//")))
			s.UsingLines = append(s.UsingLines, lineNo)
		case strings.HasPrefix(line, libraryPrefix):
			s.Libraries = append(s.Libraries, strings.TrimSpace(strings.TrimPrefix(line, libraryPrefix)))
		case strings.HasPrefix(line, sectionPrefix):
			// One-way switch: there is no marker back to the main section.
			if strings.HasSuffix(line, extensionsSuffix) {
				inMain = false
			}
		case inMain:
			s.Main = append(s.Main, line)
			s.MainLines = append(s.MainLines, lineNo)
		default:
			s.Extensions = append(s.Extensions, line)
			s.ExtensionLines = append(s.ExtensionLines, lineNo)
		}
	}

	if !HasReturn(s.Main) {
		s.Main = append(s.Main, AutoReturn)
		s.MainLines = append(s.MainLines, 0)
	}
	return s, nil
}

// HasReturn reports whether any line contains the word "return".
func HasReturn(lines []string) bool {
	for _, line := range lines {
		if returnPattern.MatchString(line) {
			return true
		}
	}
	return false
}
