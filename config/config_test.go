package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `
[Main.Advanced]
CacheScript = false
ScriptCacheSize = 64
InternalCmdChar = "backslash"

[Scripting]
ScriptDir = "bots"
Libraries = ["lib/regex.dll"]

[Logging]
Verbosity = 2
File = "bot.log"
`
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.False(t, c.Main.Advanced.CacheScript)
	require.Equal(t, 64, c.Main.Advanced.ScriptCacheSize)
	require.Equal(t, []string{"lib/regex.dll"}, c.Scripting.Libraries)
	require.Equal(t, 2, c.Logging.Verbosity)
	require.Equal(t, "bot.log", c.Logging.File)

	ch, err := c.InternalCommandChar()
	require.NoError(t, err)
	require.Equal(t, '\\', ch)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(abs, "bots"), c.ScriptDirPath())
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("[Logging]\nVerbosity = 0\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.True(t, c.Main.Advanced.CacheScript)
	require.Equal(t, "scripts", c.Scripting.ScriptDir)
	require.Equal(t, []string{".cs", ".txt"}, c.Scripting.Extensions)
	require.Zero(t, c.Logging.Verbosity)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":       "[Main.Advanced\n",
		"negative":     "[Main.Advanced]\nScriptCacheSize = -1\n",
		"command char": "[Main.Advanced]\nInternalCmdChar = \"hash\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", FileName)
	want := Default()
	want.Main.Advanced.ScriptCacheSize = 8
	want.Scripting.Database = "scripts.db"
	require.NoError(t, Write(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	want.Dir = got.Dir
	require.Equal(t, want, got)
	require.Equal(t, filepath.Join(got.Dir, "scripts.db"), got.DatabasePath())
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("[Logging]\nVerbosity = 3\n"), 0o644))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.Equal(t, 3, c.Logging.Verbosity)
}

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvCacheScript, "false")
	t.Setenv(EnvScriptDir, " /srv/scripts ")
	t.Setenv(EnvVerbosity, "4")

	c := Default()
	require.NoError(t, c.ApplyEnv())
	require.False(t, c.Main.Advanced.CacheScript)
	require.Equal(t, "/srv/scripts", c.Scripting.ScriptDir)
	require.Equal(t, 4, c.Logging.Verbosity)
}

func TestApplyEnvDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvVerbosity+"=5\n"), 0o644))
	// Registered so the variable godotenv sets is removed afterwards.
	t.Setenv(EnvVerbosity, "")
	os.Unsetenv(EnvVerbosity)

	c := Default()
	require.NoError(t, c.ApplyEnv())
	require.Equal(t, 5, c.Logging.Verbosity)
}

func TestApplyEnvMalformed(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvCacheScript, "sometimes")

	c := Default()
	require.Error(t, c.ApplyEnv())
	require.True(t, c.Main.Advanced.CacheScript)
}
