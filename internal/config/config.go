package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"asmsplit/internal/classify"
	"asmsplit/internal/naming"
	"asmsplit/internal/segment"
	"asmsplit/internal/verify"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "asmsplit.toml"

type Config struct {
	Split     SplitConfig     `toml:"split"`
	Coalesce  CoalesceConfig  `toml:"coalesce"`
	Assembler AssemblerConfig `toml:"assembler"`
	Dialect   DialectConfig   `toml:"dialect"`
	Routing   RoutingConfig   `toml:"routing"`
}

type SplitConfig struct {
	DataDir  string `toml:"data_dir" validate:"required"`
	MinLines int    `toml:"min_lines" validate:"min=1"`
}

type CoalesceConfig struct {
	Enabled  bool `toml:"enabled"`
	GapLimit int  `toml:"gap_limit" validate:"min=0"`
	MaxTotal int  `toml:"max_total" validate:"min=1"`
}

type AssemblerConfig struct {
	Path       string   `toml:"path"`
	Names      []string `toml:"names" validate:"dive,required"`
	SearchDirs []string `toml:"search_dirs"`
	Timeout    Duration `toml:"timeout" validate:"gt=0"`
}

type DialectConfig struct {
	Comment           string   `toml:"comment" validate:"required"`
	Include           string   `toml:"include" validate:"required"`
	DataTokens        []string `toml:"data_tokens" validate:"min=1,dive,required"`
	DirectiveTokens   []string `toml:"directive_tokens" validate:"dive,required"`
	ConditionalTokens []string `toml:"conditional_tokens" validate:"dive,required"`
}

type RoutingConfig struct {
	Rules []RouteRule `toml:"rules" validate:"dive"`
}

type RouteRule struct {
	Dir      string   `toml:"dir" validate:"required"`
	Keywords []string `toml:"keywords" validate:"min=1,dive,required"`
}

// Duration reads TOML strings such as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Load reads path over the defaults. A missing file yields the defaults; keys that do
// not map onto the config are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks numeric bounds and required fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Write saves cfg as TOML, refusing to replace an existing file.
func Write(path string, cfg *Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ClassifyDialect converts the dialect section.
func (c *Config) ClassifyDialect() classify.Dialect {
	return classify.Dialect{
		Comment:           c.Dialect.Comment,
		Include:           c.Dialect.Include,
		DataTokens:        c.Dialect.DataTokens,
		DirectiveTokens:   c.Dialect.DirectiveTokens,
		ConditionalTokens: c.Dialect.ConditionalTokens,
	}
}

func (c *Config) RouteRules() []naming.Rule {
	rules := make([]naming.Rule, len(c.Routing.Rules))
	for i, r := range c.Routing.Rules {
		rules[i] = naming.Rule{Dir: r.Dir, Keywords: r.Keywords}
	}
	return rules
}

func (c *Config) SegmentOptions() segment.Options {
	return segment.Options{MinLines: c.Split.MinLines}
}

func (c *Config) CoalesceOptions() segment.CoalesceOptions {
	return segment.CoalesceOptions{GapLimit: c.Coalesce.GapLimit, MaxTotal: c.Coalesce.MaxTotal}
}

func (c *Config) FindOptions() verify.FindOptions {
	return verify.FindOptions{
		Explicit:   c.Assembler.Path,
		Names:      c.Assembler.Names,
		SearchDirs: c.Assembler.SearchDirs,
	}
}

func Default() *Config {
	d := classify.DefaultDialect()
	cfg := &Config{
		Split: SplitConfig{
			DataDir:  "src/data",
			MinLines: segment.DefaultOptions().MinLines,
		},
		Coalesce: CoalesceConfig{
			Enabled:  true,
			GapLimit: segment.DefaultCoalesceOptions().GapLimit,
			MaxTotal: segment.DefaultCoalesceOptions().MaxTotal,
		},
		Assembler: AssemblerConfig{
			Names:      verify.DefaultNames(),
			SearchDirs: verify.DefaultSearchDirs(),
			Timeout:    Duration(verify.DefaultTimeout),
		},
		Dialect: DialectConfig{
			Comment:           d.Comment,
			Include:           d.Include,
			DataTokens:        d.DataTokens,
			DirectiveTokens:   d.DirectiveTokens,
			ConditionalTokens: d.ConditionalTokens,
		},
	}
	for _, r := range naming.DefaultRules() {
		cfg.Routing.Rules = append(cfg.Routing.Rules, RouteRule{Dir: r.Dir, Keywords: r.Keywords})
	}
	return cfg
}
