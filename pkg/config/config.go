// Package config loads shadegraph settings from an HCL file:
//
//	snap_threshold = 40
//	eval_timeout   = "2s"
//	log_level      = "debug"
//
//	shader {
//	  vertex_entry   = "vs_main"
//	  fragment_entry = "fs_main"
//	}
//
// Every attribute is optional; unset values keep their defaults.
package config

import (
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/engine"
	"github.com/chazu/shadegraph/pkg/resolver"
	"github.com/chazu/shadegraph/pkg/shader"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the resolved configuration.
type Config struct {
	SnapThreshold float64
	EvalTimeout   time.Duration
	LogLevel      string
	Shader        shader.Options
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SnapThreshold: resolver.DefaultSnapThreshold,
		EvalTimeout:   engine.EvalTimeout,
		LogLevel:      "info",
		Shader: shader.Options{
			VertexEntry:   shader.DefaultVertexEntry,
			FragmentEntry: shader.DefaultFragmentEntry,
		},
	}
}

// file mirrors the HCL layout. Pointers distinguish unset attributes.
type file struct {
	SnapThreshold *float64     `hcl:"snap_threshold,optional"`
	EvalTimeout   *string      `hcl:"eval_timeout,optional"`
	LogLevel      *string      `hcl:"log_level,optional"`
	Shader        *shaderBlock `hcl:"shader,block"`
}

type shaderBlock struct {
	VertexEntry   *string `hcl:"vertex_entry,optional"`
	FragmentEntry *string `hcl:"fragment_entry,optional"`
}

// Load reads path and overlays it on Default.
func Load(path string) (Config, error) {
	var f file
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return Config{}, errors.Wrapf(err, "load %s", path)
	}
	return f.resolve()
}

// Parse decodes src as if read from filename, which must end in .hcl.
func Parse(filename string, src []byte) (Config, error) {
	var f file
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return Config{}, errors.Wrapf(err, "parse %s", filename)
	}
	return f.resolve()
}

func (f *file) resolve() (Config, error) {
	c := Default()
	if f.SnapThreshold != nil {
		c.SnapThreshold = *f.SnapThreshold
	}
	if f.EvalTimeout != nil {
		d, err := time.ParseDuration(*f.EvalTimeout)
		if err != nil {
			return Config{}, errors.Wrapf(ErrInvalid, "eval_timeout: %v", err)
		}
		c.EvalTimeout = d
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if s := f.Shader; s != nil {
		if s.VertexEntry != nil {
			c.Shader.VertexEntry = *s.VertexEntry
		}
		if s.FragmentEntry != nil {
			c.Shader.FragmentEntry = *s.FragmentEntry
		}
	}
	return c, c.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.SnapThreshold <= 0:
		return errors.Wrapf(ErrInvalid, "snap_threshold must be positive, got %v", c.SnapThreshold)
	case c.EvalTimeout <= 0:
		return errors.Wrapf(ErrInvalid, "eval_timeout must be positive, got %s", c.EvalTimeout)
	case c.Shader.VertexEntry == "" || c.Shader.FragmentEntry == "":
		return errors.Wrap(ErrInvalid, "shader entry points must not be empty")
	case c.Shader.VertexEntry == c.Shader.FragmentEntry:
		return errors.Wrapf(ErrInvalid, "shader entry points must differ, both are %q", c.Shader.VertexEntry)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Wrapf(ErrInvalid, "log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}
