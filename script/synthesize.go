package script

import "strings"

// ---------------------------------------------------------------------------
// Code synthesis
// ---------------------------------------------------------------------------

// Names fixed by the unit boilerplate.
const (
	UnitName      = "Script"
	EntryPoint    = "__run"
	HandleField   = "MCC"
	HandleParam   = "__apiHandler"
	ArgumentsName = "args"
)

// preamble grants every unit the core namespaces.
var preamble = []string{
	"using host;",
	"using text;",
	"using math;",
	"using collections;",
	"using time;",
}

// Unit is a synthesized, self-contained compilation unit.
type Unit struct {
	Source    string
	Libraries []string

	// LineMap[i] is the script line that produced unit line i+1, or 0 for
	// boilerplate lines.
	LineMap []int
}

// ScriptLine maps a 1-based unit line back to its script line (0 if the
// line is boilerplate or out of range).
func (u *Unit) ScriptLine(unitLine int) int {
	if unitLine < 1 || unitLine > len(u.LineMap) {
		return 0
	}
	return u.LineMap[unitLine-1]
}

type unitWriter struct {
	lines   []string
	lineMap []int
}

func (w *unitWriter) add(line string, origin int) {
	w.lines = append(w.lines, line)
	w.lineMap = append(w.lineMap, origin)
}

// Synthesize assembles preprocessed sections into one unit: preamble,
// directives, the entry point wrapping the main body, the extension members
// and the closing boilerplate. Library references travel beside the source.
func Synthesize(s *Sections) *Unit {
	w := &unitWriter{}
	for _, line := range preamble {
		w.add(line, 0)
	}
	for i, using := range s.Usings {
		w.add(using, lineAt(s.UsingLines, i))
	}

	w.add("unit "+UnitName+" {", 0)
	w.add("var "+HandleField+";", 0)
	w.add("object "+EntryPoint+"(API "+HandleParam+", string[] "+ArgumentsName+") {", 0)
	w.add(HandleField+" = "+HandleParam+";", 0)
	for i, line := range s.Main {
		w.add(line, lineAt(s.MainLines, i))
	}
	w.add("}", 0)
	for i, line := range s.Extensions {
		w.add(line, lineAt(s.ExtensionLines, i))
	}
	w.add("}", 0)

	libs := make([]string, len(s.Libraries))
	copy(libs, s.Libraries)

	return &Unit{
		Source:    strings.Join(w.lines, "\n"),
		Libraries: libs,
		LineMap:   w.lineMap,
	}
}

func lineAt(origins []int, i int) int {
	if i < len(origins) {
		return origins[i]
	}
	return 0
}
