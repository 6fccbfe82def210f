package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"bom only", "\xEF\xBB\xBF", nil},
		{"single", "a", []string{"a"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"bom", "\xEF\xBB\xBF//MCCScript 1.0\nx", []string{"//MCCScript 1.0", "x"}},
		{"blank lines kept", "a\n\nb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SplitLines([]byte(tt.in)))
		})
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, ".cs", ".txt")

	lines := []string{"//MCCScript 1.0", `LogToConsole("hi");`}
	require.NoError(t, s.WriteLines(filepath.Join("sub", "hello.cs"), lines))

	got, err := s.ReadLines("sub/hello.cs")
	require.NoError(t, err)
	require.Equal(t, lines, got)

	got, err = s.ReadLines("sub/hello")
	require.NoError(t, err)
	require.Equal(t, lines, got)

	got, err = s.ReadLines(filepath.Join(dir, "sub", "hello.cs"))
	require.NoError(t, err)
	require.Equal(t, lines, got)
}

func TestFileStoreMissing(t *testing.T) {
	s := NewFileStore(t.TempDir())

	_, err := s.ReadLines("nope.cs")
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = s.ReadLines("")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreStripsBOM(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bom.cs"), []byte("\xEF\xBB\xBF//MCCScript 1.0\r\nreturn 1;\r\n"), 0o644))

	got, err := NewFileStore(dir).ReadLines("bom.cs")
	require.NoError(t, err)
	require.Equal(t, []string{"//MCCScript 1.0", "return 1;"}, got)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "scripts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Put("b.cs", []string{"//MCCScript 1.0", "return 2;"}))
	require.NoError(t, s.Put("a.cs", []string{"//MCCScript 1.0", "return 1;"}))
	require.NoError(t, s.Put("a.cs", []string{"//MCCScript 1.0", "return 3;"}))

	got, err := s.ReadLines("a.cs")
	require.NoError(t, err)
	require.Equal(t, []string{"//MCCScript 1.0", "return 3;"}, got)

	names, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"a.cs", "b.cs"}, names)

	require.NoError(t, s.Delete("a.cs"))
	require.NoError(t, s.Delete("a.cs"))
	_, err = s.ReadLines("a.cs")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSQLiteImport(t *testing.T) {
	files := NewFileStore(t.TempDir())
	require.NoError(t, files.WriteLines("x.cs", []string{"//MCCScript 1.0", "return 1;"}))

	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Import(files, "x.cs"))
	got, err := s.ReadLines("x.cs")
	require.NoError(t, err)
	require.Equal(t, []string{"//MCCScript 1.0", "return 1;"}, got)

	require.ErrorIs(t, s.Import(files, "missing.cs"), fs.ErrNotExist)
}
