package cli

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dcltools/netscope/pkg/crawl"
	"github.com/dcltools/netscope/pkg/endpoint"
	"github.com/dcltools/netscope/pkg/errors"
)

// DefaultConfigFile is looked up in the working directory when no
// --config flag is given.
const DefaultConfigFile = "netscope.toml"

const defaultCacheTTL = 15 * time.Minute

// duration wraps time.Duration for TOML decoding from strings like
// "30s" or "5m".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Config is the netscope configuration file.
//
// All fields are optional; flags override file values, and anything
// left unset falls back to built-in defaults.
type Config struct {
	// Seeds are the default seed addresses for crawls.
	Seeds []string `toml:"seeds"`

	// RelayURL routes plain-HTTP node queries through a CORS relay.
	RelayURL string `toml:"relay_url"`

	// SkipPrivate drops peers reporting private addresses.
	SkipPrivate bool `toml:"skip_private"`

	Crawl crawlSection `toml:"crawl"`
	Cache cacheSection `toml:"cache"`
	Serve serveSection `toml:"serve"`
}

type crawlSection struct {
	Concurrency int      `toml:"concurrency"`
	MaxDepth    int      `toml:"max_depth"`
	MaxNodes    int      `toml:"max_nodes"`
	Timeout     duration `toml:"timeout"`
}

type cacheSection struct {
	// Dir is the response cache directory. Empty means the user cache
	// directory.
	Dir string `toml:"dir"`

	// TTL is how long cached RPC responses stay fresh.
	TTL duration `toml:"ttl"`

	// Disabled turns response caching off entirely.
	Disabled bool `toml:"disabled"`
}

type serveSection struct {
	// Listen is the API server bind address.
	Listen string `toml:"listen"`
}

func defaultConfig() *Config {
	return &Config{
		Cache: cacheSection{TTL: duration(defaultCacheTTL)},
		Serve: serveSection{Listen: ":8080"},
	}
}

// LoadConfig reads the configuration file at path. An empty path means
// DefaultConfigFile, which may be absent; a path given explicitly must
// exist.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config file %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Crawl.Concurrency < 0 || c.Crawl.MaxDepth < 0 || c.Crawl.MaxNodes < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "crawl limits must not be negative")
	}
	if c.Serve.Listen == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "serve.listen must not be empty")
	}
	return nil
}

// CrawlConfig builds the crawl configuration from the file values.
func (c *Config) CrawlConfig() crawl.Config {
	return crawl.Config{
		Concurrency: c.Crawl.Concurrency,
		MaxDepth:    c.Crawl.MaxDepth,
		MaxNodes:    c.Crawl.MaxNodes,
		Timeout:     time.Duration(c.Crawl.Timeout),
		SkipPrivate: c.SkipPrivate,
		Resolver:    endpoint.Resolver{RelayURL: c.RelayURL},
	}
}
