package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	prefix   string
	envFiles []string
	environ  map[string]string
	useOS    bool
}

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(o *loadOptions) {
		o.prefix = prefix
	}
}

// WithEnvFiles reads .env files, in order. Earlier files win, and real
// environment variables win over all files. Missing files are an error.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) {
		o.envFiles = append(o.envFiles, paths...)
	}
}

// WithEnvironment uses vars instead of the process environment. Env files
// still apply underneath.
func WithEnvironment(vars map[string]string) Option {
	return func(o *loadOptions) {
		o.environ = vars
		o.useOS = false
	}
}

// Load reads Config from the environment and validates it.
//
// Example:
//
//	cfg, err := config.Load(config.WithEnvFiles(".env"))
//	if err != nil {
//		return err
//	}
func Load(opts ...Option) (Config, error) {
	o := &loadOptions{prefix: DefaultPrefix, useOS: true}
	for _, opt := range opts {
		opt(o)
	}

	vars := make(map[string]string)
	for i := len(o.envFiles) - 1; i >= 0; i-- {
		fileVars, err := godotenv.Read(o.envFiles[i])
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrEnvFile, o.envFiles[i], err)
		}
		maps.Copy(vars, fileVars)
	}
	if o.useOS {
		maps.Copy(vars, environ())
	} else {
		maps.Copy(vars, o.environ)
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      o.prefix,
		Environment: vars,
	}); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad(opts ...Option) Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
