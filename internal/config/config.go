// Package config loads the settings shared by every command: an optional YAML
// file overlaid by DOCMAP_ environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read.
const EnvPrefix = "DOCMAP_"

// Defaults for keys left unset.
const (
	DefaultRepoPath      = "."
	DefaultContentDir    = "articles"
	DefaultMappingDir    = "mappings"
	DefaultWatchDebounce = 2 * time.Second
)

// Config wraps the merged configuration. Keys are flat snake_case, the
// environment variable DOCMAP_GIT_URL maps to git_url.
type Config struct {
	k *koanf.Koanf
}

// Option configures Load.
type Option func(*options)

type options struct {
	file    string
	environ func() []string
}

// WithFile loads path as YAML before the environment. Empty means no file.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithEnviron replaces os.Environ (useful for testing).
func WithEnviron(fn func() []string) Option {
	return func(o *options) {
		o.environ = fn
	}
}

// Load reads the configuration file, if any, then the environment.
func Load(opts ...Option) (*Config, error) {
	o := &options{environ: os.Environ}
	for _, opt := range opts {
		opt(o)
	}

	k := koanf.New(".")

	if o.file != "" {
		if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", o.file, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
		EnvironFunc: o.environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	return &Config{k: k}, nil
}

// Koanf exposes the raw configuration to the packages loading their own section.
func (c *Config) Koanf() *koanf.Koanf {
	return c.k
}

// Set overrides a key, typically from a command-line flag.
func (c *Config) Set(key string, value any) {
	_ = c.k.Set(key, value)
}

// String returns the value of key, or def when unset or empty.
func (c *Config) String(key, def string) string {
	if v := c.k.String(key); v != "" {
		return v
	}
	return def
}

// Duration returns the value of key, or def when unset or invalid.
func (c *Config) Duration(key string, def time.Duration) time.Duration {
	if !c.k.Exists(key) {
		return def
	}
	if d := c.k.Duration(key); d > 0 {
		return d
	}
	return def
}

// Int returns the value of key, or def when unset.
func (c *Config) Int(key string, def int) int {
	if !c.k.Exists(key) {
		return def
	}
	return c.k.Int(key)
}

// RepoPath is the root of the git working copy.
func (c *Config) RepoPath() string {
	return c.String("repo_path", DefaultRepoPath)
}

// ContentPath is the directory holding the category tree.
func (c *Config) ContentPath() string {
	return c.resolve(c.String("content_dir", DefaultContentDir))
}

// MappingPath is the directory holding the mapping collections.
func (c *Config) MappingPath() string {
	return c.resolve(c.String("mapping_dir", DefaultMappingDir))
}

// LogFormat is "text" or "json".
func (c *Config) LogFormat() string {
	return strings.ToLower(c.String("log_format", "text"))
}

// LogFile is an optional rotating log file written in addition to stderr.
func (c *Config) LogFile() string {
	return c.String("log_file", "")
}

// WatchDebounce is how long the tree must stay quiet before a watched pass starts.
func (c *Config) WatchDebounce() time.Duration {
	return c.Duration("watch_debounce", DefaultWatchDebounce)
}

// resolve makes dir relative to the repository unless it is absolute.
func (c *Config) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.RepoPath(), dir)
}
