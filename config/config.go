// Package config handles the .d2dedup.yaml configuration file.
//
// The file is optional. Values missing from it are filled from Default, and
// D2DEDUP_* environment variables override what the file says. Command-line
// flags are applied on top by the caller.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/imdario/mergo"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name, looked up in the working directory.
const FileName = ".d2dedup.yaml"

// Authentication kinds accepted in the auth field.
const (
	AuthBasic = "basic"
	AuthToken = "token"
)

// Environment variables read by ApplyEnv.
const (
	EnvServer   = "D2DEDUP_SERVER"
	EnvUsername = "D2DEDUP_USERNAME"
	EnvPassword = "D2DEDUP_PASSWORD"
	EnvToken    = "D2DEDUP_TOKEN"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the .d2dedup.yaml structure.
type File struct {
	// Server is the DHIS2 base URL, e.g. https://play.dhis2.org/40.
	Server string `yaml:"server,omitempty"`
	// Auth: "basic" or "token".
	Auth     string `yaml:"auth,omitempty"`
	Username string `yaml:"username,omitempty"`

	// Secrets are never read from the file.
	Password string `yaml:"-"`
	Token    string `yaml:"-"`

	Timeout time.Duration `yaml:"timeout,omitempty"`
	// MaxRetries of 0 means the default; a negative value disables retries.
	MaxRetries int    `yaml:"max_retries,omitempty"`
	Proxy      string `yaml:"proxy,omitempty"`
	LogLevel   string `yaml:"log_level,omitempty"`
	// Language of the tool's own messages; auto-detected when empty.
	Language string `yaml:"language,omitempty"`
	// Session is the path of the session file used by fix --retry.
	Session string `yaml:"session,omitempty"`

	Types Types `yaml:"types,omitempty"`
}

// Types restricts which metadata types are scanned, by plural name.
type Types struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Default returns the built-in configuration.
func Default() File {
	return File{
		Auth:       AuthBasic,
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		LogLevel:   "info",
		Session:    "d2dedup.session",
	}
}

// Retries returns the retry count to hand to the HTTP client.
func (f *File) Retries() int {
	if f.MaxRetries < 0 {
		return 0
	}
	return f.MaxRetries
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadFile parses the config file at path without applying defaults.
// Returns nil if the file does not exist.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// Load resolves the effective configuration. An explicit path must exist;
// otherwise FileName is looked up in dir and may be absent. The result has
// defaults merged in and the environment applied, and is validated.
func Load(dir, explicit string, getenv func(string) string) (*File, error) {
	path := explicit
	if path == "" {
		path = filepath.Join(dir, FileName)
	}

	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		if explicit != "" {
			return nil, fmt.Errorf("config file %s not found", explicit)
		}
		f = &File{}
	}

	if err := f.MergeDefaults(); err != nil {
		return nil, err
	}
	f.ApplyEnv(getenv)

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// MergeDefaults fills every unset field from Default.
func (f *File) MergeDefaults() error {
	if err := mergo.Merge(f, Default()); err != nil {
		return fmt.Errorf("merging defaults: %w", err)
	}
	return nil
}

// ApplyEnv overrides connection settings from D2DEDUP_* variables.
// A nil getenv uses os.Getenv.
func (f *File) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvServer); v != "" {
		f.Server = v
	}
	if v := getenv(EnvUsername); v != "" {
		f.Username = v
	}
	if v := getenv(EnvPassword); v != "" {
		f.Password = v
	}
	if v := getenv(EnvToken); v != "" {
		f.Token = v
		// a token in the environment implies token auth unless a username is also set
		if getenv(EnvUsername) == "" {
			f.Auth = AuthToken
		}
	}
}

// Validate checks field values. An empty server is allowed here; commands
// that need one report it themselves.
func (f *File) Validate() error {
	switch f.Auth {
	case AuthBasic, AuthToken:
	default:
		return fmt.Errorf("unknown auth %q (valid: basic, token)", f.Auth)
	}

	if f.Server != "" {
		u, err := url.Parse(f.Server)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid server URL %q", f.Server)
		}
	}
	if f.Proxy != "" {
		if _, err := url.Parse(f.Proxy); err != nil {
			return fmt.Errorf("invalid proxy URL %q", f.Proxy)
		}
	}

	if f.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if _, err := log.ParseLevel(f.LogLevel); err != nil {
		return fmt.Errorf("unknown log_level %q (valid: debug, info, warn, error)", f.LogLevel)
	}

	for _, t := range append(append([]string(nil), f.Types.Include...), f.Types.Exclude...) {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("empty type name in types")
		}
	}
	return nil
}

// Save writes f to path as YAML.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
