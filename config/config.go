// Package config handles botscript.toml settings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the settings file looked up by FindAndLoad.
const FileName = "botscript.toml"

// Environment overrides applied by ApplyEnv.
const (
	EnvCacheScript = "BOTSCRIPT_CACHE_SCRIPT"
	EnvScriptDir   = "BOTSCRIPT_SCRIPT_DIR"
	EnvVerbosity   = "BOTSCRIPT_VERBOSITY"
)

// Config is the complete settings tree.
type Config struct {
	Main      Main      `toml:"Main"`
	Scripting Scripting `toml:"Scripting"`
	Logging   Logging   `toml:"Logging"`

	// Dir is the directory containing the settings file (set at load time).
	Dir string `toml:"-"`
}

// Main holds general bot settings.
type Main struct {
	Advanced Advanced `toml:"Advanced"`
}

// Advanced holds the runner knobs.
type Advanced struct {
	// CacheScript reuses compiled scripts whose text did not change.
	CacheScript bool `toml:"CacheScript"`
	// ScriptCacheSize bounds the compile cache; 0 is unbounded.
	ScriptCacheSize int `toml:"ScriptCacheSize"`
	// InternalCmdChar prefixes internal commands: none, slash or backslash.
	InternalCmdChar string `toml:"InternalCmdChar"`
}

// Scripting configures script lookup.
type Scripting struct {
	ScriptDir  string   `toml:"ScriptDir"`
	Extensions []string `toml:"Extensions"`
	Libraries  []string `toml:"Libraries"`
	Database   string   `toml:"Database"`
}

// Logging configures commonlog.
type Logging struct {
	Verbosity int    `toml:"Verbosity"`
	File      string `toml:"File"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Main: Main{Advanced: Advanced{
			CacheScript:     true,
			InternalCmdChar: "slash",
		}},
		Scripting: Scripting{
			ScriptDir:  "scripts",
			Extensions: []string{".cs", ".txt"},
		},
		Logging: Logging{Verbosity: 1},
	}
}

// Load parses the settings file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a botscript.toml file, then
// loads and returns it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			c := Default()
			c.Dir, _ = filepath.Abs(startDir)
			return c, nil
		}
		dir = parent
	}
}

// Write encodes c to path.
func Write(path string, c *Config) error {
	var buf bytes.Buffer
	buf.WriteString("# botscript settings\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate rejects settings the runner cannot use.
func (c *Config) Validate() error {
	if c.Main.Advanced.ScriptCacheSize < 0 {
		return fmt.Errorf("ScriptCacheSize must not be negative, got %d", c.Main.Advanced.ScriptCacheSize)
	}
	if _, err := c.InternalCommandChar(); err != nil {
		return err
	}
	return nil
}

// InternalCommandChar returns the internal command prefix, 0 for none.
func (c *Config) InternalCommandChar() (rune, error) {
	switch strings.ToLower(strings.TrimSpace(c.Main.Advanced.InternalCmdChar)) {
	case "none":
		return 0, nil
	case "", "slash":
		return '/', nil
	case "backslash":
		return '\\', nil
	}
	return 0, fmt.Errorf("unknown InternalCmdChar %q (want none, slash or backslash)", c.Main.Advanced.InternalCmdChar)
}

// ScriptDirPath returns ScriptDir resolved against the settings directory.
func (c *Config) ScriptDirPath() string {
	if filepath.IsAbs(c.Scripting.ScriptDir) || c.Dir == "" {
		return c.Scripting.ScriptDir
	}
	return filepath.Join(c.Dir, c.Scripting.ScriptDir)
}

// DatabasePath returns Database resolved against the settings directory,
// or "" when scripts are read from files.
func (c *Config) DatabasePath() string {
	db := c.Scripting.Database
	if db == "" || db == ":memory:" || filepath.IsAbs(db) || c.Dir == "" {
		return db
	}
	return filepath.Join(c.Dir, db)
}

// ApplyEnv loads a .env file when present and applies the BOTSCRIPT_*
// overrides. Malformed values are reported and leave the setting alone.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	if raw := strings.TrimSpace(os.Getenv(EnvCacheScript)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheScript, err)
		}
		c.Main.Advanced.CacheScript = v
	}
	if dir := strings.TrimSpace(os.Getenv(EnvScriptDir)); dir != "" {
		c.Scripting.ScriptDir = dir
	}
	if raw := strings.TrimSpace(os.Getenv(EnvVerbosity)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVerbosity, err)
		}
		c.Logging.Verbosity = v
	}
	return nil
}
