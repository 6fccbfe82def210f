package vm

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Program image
// ---------------------------------------------------------------------------

// ImageVersion is the current program image format version.
const ImageVersion uint16 = 1

// ErrImageVersion is returned when an image was written by another format.
var ErrImageVersion = errors.New("vm: unsupported image version")

// ConstKind tags a constant pool entry.
type ConstKind uint8

const (
	ConstInt    ConstKind = 1
	ConstFloat  ConstKind = 2
	ConstString ConstKind = 3
)

// Constant is a literal in a function's constant pool.
type Constant struct {
	Kind  ConstKind `cbor:"1,keyasint"`
	Int   int64     `cbor:"2,keyasint,omitempty"`
	Float float64   `cbor:"3,keyasint,omitempty"`
	Str   string    `cbor:"4,keyasint,omitempty"`
}

// Value returns the runtime value of the constant.
func (c Constant) Value() Value {
	switch c.Kind {
	case ConstInt:
		return c.Int
	case ConstFloat:
		return c.Float
	default:
		return c.Str
	}
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	default:
		return strconv.Quote(c.Str)
	}
}

// LineEntry maps a bytecode offset to a unit source line.
type LineEntry struct {
	Offset uint32 `cbor:"1,keyasint"`
	Line   uint32 `cbor:"2,keyasint"`
}

// Function is one compiled unit member (or the field initializer).
type Function struct {
	Name      string      `cbor:"1,keyasint"`
	NumParams int         `cbor:"2,keyasint"`
	NumLocals int         `cbor:"3,keyasint"`
	Code      []byte      `cbor:"4,keyasint"`
	Constants []Constant  `cbor:"5,keyasint,omitempty"`
	Lines     []LineEntry `cbor:"6,keyasint,omitempty"`
}

// LineAt returns the source line for the instruction at offset ip.
func (f *Function) LineAt(ip int) int {
	i := sort.Search(len(f.Lines), func(i int) bool { return int(f.Lines[i].Offset) > ip })
	if i == 0 {
		return 0
	}
	return int(f.Lines[i-1].Line)
}

// Program is a compiled unit: its fields, functions and the native
// functions it references by qualified name ("namespace.Function").
type Program struct {
	Version   uint16     `cbor:"1,keyasint"`
	ID        string     `cbor:"2,keyasint"`
	Unit      string     `cbor:"3,keyasint"`
	Globals   []string   `cbor:"4,keyasint,omitempty"`
	Functions []Function `cbor:"5,keyasint"`
	Natives   []string   `cbor:"6,keyasint,omitempty"`
	Libraries []string   `cbor:"7,keyasint,omitempty"`
	Init      int        `cbor:"8,keyasint"` // field initializer, -1 if none
}

// FunctionIndex returns the index of the named function, or -1.
func (p *Program) FunctionIndex(name string) int {
	for i := range p.Functions {
		if p.Functions[i].Name == name {
			return i
		}
	}
	return -1
}

// Artifact is an opaque compiled unit as handed out by a compiler. Its image
// is never modified after creation.
type Artifact struct {
	ID    string
	Image []byte
}

// Size returns the image size in bytes.
func (a *Artifact) Size() int {
	return len(a.Image)
}

// ---------------------------------------------------------------------------
// CBOR encoding
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EncodeProgram serializes a program into an artifact.
func EncodeProgram(p *Program) (*Artifact, error) {
	p.Version = ImageVersion
	data, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("vm: encode program: %w", err)
	}
	return &Artifact{ID: p.ID, Image: data}, nil
}

// DecodeProgram deserializes an artifact image.
func DecodeProgram(a *Artifact) (*Program, error) {
	if a == nil || len(a.Image) == 0 {
		return nil, errors.New("vm: empty artifact")
	}
	var p Program
	if err := cbor.Unmarshal(a.Image, &p); err != nil {
		return nil, fmt.Errorf("vm: decode program: %w", err)
	}
	if p.Version != ImageVersion {
		return nil, fmt.Errorf("%w: %d", ErrImageVersion, p.Version)
	}
	return &p, nil
}
