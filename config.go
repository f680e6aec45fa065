package bundlez

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is the shared validator instance.
var validate = validator.New()

// Codec decodes configuration documents.
type Codec interface {
	// Unmarshal deserializes bytes into a value.
	Unmarshal(data []byte, v any) error

	// ContentType returns the MIME type of the format.
	ContentType() string
}

// JSONCodec decodes JSON configuration.
type JSONCodec struct{}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) ContentType() string {
	return "application/json"
}

// YAMLCodec decodes YAML configuration.
type YAMLCodec struct{}

func (YAMLCodec) Unmarshal(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

func (YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
)

// Config is the declarative form of a bundlez deployment.
type Config struct {
	// Version feeds the config cache-buster. Changing it rotates every
	// production token.
	Version string `json:"version" yaml:"version" validate:"required"`

	// WebRoot is the directory source paths are relative to.
	WebRoot string `json:"web_root" yaml:"web_root" validate:"required"`

	// CacheDir is where compiled artifacts are stored.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" validate:"required"`

	BundlePath    string `json:"bundle_path" yaml:"bundle_path" validate:"omitempty,startswith=/"`
	CompositePath string `json:"composite_path" yaml:"composite_path" validate:"omitempty,startswith=/"`

	// Debounce is the file change coalescing window, e.g. "250ms".
	Debounce string `json:"debounce" yaml:"debounce"`

	Bundles []BundleConfig `json:"bundles" yaml:"bundles" validate:"dive"`
}

// BundleConfig declares one bundle.
type BundleConfig struct {
	Name       string            `json:"name" yaml:"name" validate:"required,excludesall=/\\"`
	Type       string            `json:"type" yaml:"type" validate:"required,oneof=js css"`
	Files      []string          `json:"files" yaml:"files" validate:"required,min=1,dive,required"`
	Debug      EnvironmentConfig `json:"debug" yaml:"debug"`
	Production EnvironmentConfig `json:"production" yaml:"production"`
}

// EnvironmentConfig overrides the defaults of one namespace. Unset fields keep
// the value of DefaultDebugOptions or DefaultProductionOptions.
type EnvironmentConfig struct {
	CacheBuster string   `json:"cache_buster" yaml:"cache_buster"`
	FileWatch   *bool    `json:"file_watch" yaml:"file_watch"`
	ETag        *bool    `json:"etag" yaml:"etag"`
	MaxAge      string   `json:"max_age" yaml:"max_age"`
	Composite   *bool    `json:"composite" yaml:"composite"`
	Pipeline    []string `json:"pipeline" yaml:"pipeline"`
}

// LoadConfig decodes, defaults and validates a configuration document.
func LoadConfig(data []byte, codec Codec) (*Config, error) {
	var cfg Config
	if err := codec.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding %s config: %w", codec.ContentType(), err)
	}
	if cfg.BundlePath == "" {
		cfg.BundlePath = DefaultBundlePath
	}
	if cfg.CompositePath == "" {
		cfg.CompositePath = DefaultCompositePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct constraints and the values they cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return configError("config", "%v", err)
	}
	if c.BundlePath == c.CompositePath {
		return configError("config", "bundle and composite paths must differ")
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Bundles))
	for _, b := range c.Bundles {
		if seen[b.Name] {
			return configError("bundle "+b.Name, "declared twice")
		}
		seen[b.Name] = true
	}
	return nil
}

// DebounceDuration returns the configured debounce, or DefaultDebounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Debounce == "" {
		return DefaultDebounce, nil
	}
	d, err := time.ParseDuration(c.Debounce)
	if err != nil || d < 0 {
		return 0, configError("config", "invalid debounce %q", c.Debounce)
	}
	return d, nil
}

// Apply registers every configured bundle. Custom pipelines are built from
// the units of factory. Registration stops at the first error.
func (c *Config) Apply(registry *Registry, factory *Factory) error {
	for _, bc := range c.Bundles {
		t, ok := ParseWebFileType(bc.Type)
		if !ok {
			return configError("bundle "+bc.Name, "unknown type %q", bc.Type)
		}
		debug, err := bc.Debug.options(DefaultDebugOptions(), t, factory)
		if err != nil {
			return fmt.Errorf("bundle %s debug: %w", bc.Name, err)
		}
		production, err := bc.Production.options(DefaultProductionOptions(), t, factory)
		if err != nil {
			return fmt.Errorf("bundle %s production: %w", bc.Name, err)
		}
		if _, err := registry.Create(bc.Name, t, bc.Files...).
			WithEnvironmentOptions(debug, production).
			Register(); err != nil {
			return err
		}
	}
	return nil
}

func (e EnvironmentConfig) options(base EnvironmentOptions, t WebFileType, factory *Factory) (EnvironmentOptions, error) {
	if e.CacheBuster != "" {
		base.CacheBuster = e.CacheBuster
	}
	if e.FileWatch != nil {
		base.FileWatch = *e.FileWatch
	}
	if e.ETag != nil {
		base.CacheControl.ETag = *e.ETag
	}
	if e.MaxAge != "" {
		d, err := time.ParseDuration(e.MaxAge)
		if err != nil || d < 0 {
			return base, configError("max_age", "invalid duration %q", e.MaxAge)
		}
		base.CacheControl.MaxAge = d
	}
	if e.Composite != nil {
		base.ProcessAsComposite = *e.Composite
	}
	if len(e.Pipeline) > 0 {
		units := make([]Transform, 0, len(e.Pipeline))
		for _, name := range e.Pipeline {
			u, ok := factory.Unit(name)
			if !ok {
				return base, configError("pipeline", "unknown unit %q", name)
			}
			units = append(units, u)
		}
		base.Pipelines = map[WebFileType]*Pipeline{t: factory.Build(units...)}
	}
	return base, nil
}
