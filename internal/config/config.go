package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/dshills/mudcore/internal/config/loader"
	"github.com/dshills/mudcore/internal/extension"
	"github.com/dshills/mudcore/internal/logging"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "MUDCORE_"

// UI kinds.
const (
	UIText  = "text"
	UITcell = "tcell"
)

// Config is the complete client configuration.
type Config struct {
	Engine     EngineConfig     `toml:"engine" yaml:"engine"`
	Extensions ExtensionsConfig `toml:"extensions" yaml:"extensions"`
	Session    SessionConfig    `toml:"session" yaml:"session"`
	UI         UIConfig         `toml:"ui" yaml:"ui"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
}

// EngineConfig configures the dispatcher and the command interpreter.
type EngineConfig struct {
	// CommandChar prefixes command lines, "#" by default.
	CommandChar string `toml:"command_char" yaml:"command_char"`
	// DefaultInput replaces an empty input line.
	DefaultInput string `toml:"default_input" yaml:"default_input"`
	// HistorySize is how many input lines are remembered.
	HistorySize int `toml:"history_size" yaml:"history_size"`
	// TimerInterval is the period of timer_hook. Zero disables the timer.
	TimerInterval Duration `toml:"timer_interval" yaml:"timer_interval"`
	// Echo is the initial local echo state.
	Echo bool `toml:"echo" yaml:"echo"`
}

// ExtensionsConfig configures extension loading.
type ExtensionsConfig struct {
	// Paths are searched in order for Lua units. Empty means the defaults.
	Paths []string `toml:"paths" yaml:"paths"`
	// Autoload lists units loaded at startup, in order.
	Autoload []string `toml:"autoload" yaml:"autoload"`
	// AutoReload reloads a loaded Lua unit when its files change.
	AutoReload bool `toml:"auto_reload" yaml:"auto_reload"`
	// UserUnit is loaded after Autoload if it can be found. Its Lua state
	// is the one the @ command evaluates in.
	UserUnit string `toml:"user_unit" yaml:"user_unit"`
}

// SessionConfig configures sessions.
type SessionConfig struct {
	// Encoding is the charset of incoming and outgoing text.
	Encoding string `toml:"encoding" yaml:"encoding"`
	// Connect is an address to connect to at startup.
	Connect string `toml:"connect" yaml:"connect"`
	// Name is the name of the startup session.
	Name string `toml:"name" yaml:"name"`
}

// UIConfig selects the user interface.
type UIConfig struct {
	Kind   string `toml:"kind" yaml:"kind"`
	Prompt string `toml:"prompt" yaml:"prompt"`
}

// LoggingConfig configures the operator log.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	// File receives log output. Empty means stderr.
	File string `toml:"file" yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			CommandChar:   "#",
			DefaultInput:  "#cr",
			HistorySize:   100,
			TimerInterval: Duration(time.Second),
			Echo:          true,
		},
		Extensions: ExtensionsConfig{
			Autoload: []string{"advanced"},
			UserUnit: "user",
		},
		Session: SessionConfig{
			Encoding: "utf-8",
			Name:     "main",
		},
		UI: UIConfig{
			Kind:   UIText,
			Prompt: "> ",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "mudcore", "config.toml")
}

// Load reads path and the environment over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	return LoadFS(loader.DefaultFS(), path)
}

// LoadFS is Load over fsys.
func LoadFS(fsys loader.FileSystem, path string) (*Config, error) {
	merged := make(map[string]any)

	if path != "" {
		l, err := loader.ForPath(fsys, path)
		if err != nil {
			return nil, err
		}
		data, err := l.Load()
		if err != nil {
			return nil, err
		}
		merged = loader.DeepMerge(merged, data)
	}

	env, err := loader.NewEnvLoader(EnvPrefix).Load()
	if err != nil {
		return nil, err
	}
	merged = loader.DeepMerge(merged, env)

	cfg := Default()
	if err := apply(cfg, merged); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply decodes values over cfg. Settings absent from values keep their
// current value.
func apply(cfg *Config, values map[string]any) error {
	prune(values)
	if len(values) == 0 {
		return nil
	}
	data, err := toml.Marshal(values)
	if err != nil {
		return err
	}
	return toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
}

// prune removes nil values, which TOML cannot express.
func prune(m map[string]any) {
	for k, v := range m {
		switch v := v.(type) {
		case nil:
			delete(m, k)
		case map[string]any:
			prune(v)
		}
	}
}

// Validate checks every setting and returns ValidationErrors listing all
// failures.
func (c *Config) Validate() error {
	var errs ValidationErrors
	fail := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if r, n := utf8.DecodeRuneInString(c.Engine.CommandChar); n == 0 || n != len(c.Engine.CommandChar) {
		fail("engine.command_char", "must be a single character", c.Engine.CommandChar)
	} else if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		fail("engine.command_char", "must not be a letter, digit or space", c.Engine.CommandChar)
	}
	if c.Engine.DefaultInput == "" {
		fail("engine.default_input", "must not be empty", c.Engine.DefaultInput)
	}
	if c.Engine.HistorySize < 0 {
		fail("engine.history_size", "must not be negative", c.Engine.HistorySize)
	}
	if c.Engine.TimerInterval < 0 {
		fail("engine.timer_interval", "must not be negative", c.Engine.TimerInterval)
	}

	for _, id := range c.Extensions.Autoload {
		if !extension.ValidID(id) {
			fail("extensions.autoload", "invalid unit id", id)
		}
	}
	if c.Extensions.UserUnit != "" && !extension.ValidID(c.Extensions.UserUnit) {
		fail("extensions.user_unit", "invalid unit id", c.Extensions.UserUnit)
	}

	if _, err := htmlindex.Get(c.Session.Encoding); err != nil {
		fail("session.encoding", "unknown charset", c.Session.Encoding)
	}

	switch c.UI.Kind {
	case UIText, UITcell:
	default:
		fail("ui.kind", "must be text or tcell", c.UI.Kind)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		fail("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SearchPaths returns the extension search paths with "~" expanded, or the
// default paths when none are configured.
func (e ExtensionsConfig) SearchPaths() []string {
	if len(e.Paths) == 0 {
		return extension.DefaultSearchPaths()
	}
	home, _ := os.UserHomeDir()
	paths := make([]string, 0, len(e.Paths))
	for _, p := range e.Paths {
		if rest, ok := strings.CutPrefix(p, "~"); ok && home != "" {
			p = filepath.Join(home, rest)
		}
		paths = append(paths, p)
	}
	return paths
}

// Duration is a time.Duration read from either a duration string such as
// "500ms" or a number of seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.Trim(strings.TrimSpace(string(text)), `"'`)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}
