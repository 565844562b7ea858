package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/stakeview/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "stakeview.json"

	// DefaultListen is the default dashboard listen address.
	DefaultListen = ":8080"

	// DefaultNetwork is the default chain network name.
	DefaultNetwork = "mainnet"

	// DefaultPollInterval is how often the node is asked for the epoch number.
	DefaultPollInterval = 20 * time.Second

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "stakeview"
)

// Environment variables that override file values.
const (
	EnvListen     = "STAKEVIEW_LISTEN"
	EnvNodeSocket = "STAKEVIEW_NODE_SOCKET"
	EnvLogLevel   = "STAKEVIEW_LOG_LEVEL"
)

// networkMagics maps known network names to their magic numbers.
var networkMagics = map[string]uint32{
	"mainnet": 764824073,
	"preprod": 1,
	"preview": 2,
}

// Config represents the complete stakeview.json configuration.
type Config struct {
	// Listen is the dashboard HTTP listen address.
	Listen string `json:"listen,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Node contains chain node connection configuration.
	Node NodeConfig `json:"node,omitempty"`

	// Indexer contains indexed-query service configuration.
	Indexer IndexerConfig `json:"indexer,omitempty"`

	// Blobs contains content-addressed metadata storage configuration.
	Blobs BlobConfig `json:"blobs,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// NodeConfig contains node-to-client connection settings.
type NodeConfig struct {
	// Network is a named network (mainnet, preprod, preview).
	Network string `json:"network,omitempty"`

	// NetworkMagic overrides the magic derived from Network.
	NetworkMagic uint32 `json:"networkMagic,omitempty"`

	// SocketPath is the node's local socket. Takes precedence over Address.
	SocketPath string `json:"socketPath,omitempty"`

	// Address is a host:port for a TCP-exposed node socket.
	Address string `json:"address,omitempty"`

	// PollInterval is the epoch poll interval (e.g., "20s").
	PollInterval string `json:"pollInterval,omitempty"`
}

// IndexerConfig contains indexed-query service settings.
type IndexerConfig struct {
	// URL is the HTTP base URL of the indexer.
	URL string `json:"url,omitempty"`

	// FeedURL is the websocket URL of the era feed.
	FeedURL string `json:"feedUrl,omitempty"`
}

// BlobConfig contains storage settings for content-addressed pool
// metadata: an S3 bucket, or a local directory when Dir is set.
type BlobConfig struct {
	Dir      string `json:"dir,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Listen: DefaultListen,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Node: NodeConfig{
			Network:      DefaultNetwork,
			PollInterval: DefaultPollInterval.String(),
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for stakeview.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or pass --config")
		}
		return nil, errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.ApplyEnv(os.LookupEnv)

	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup(EnvNodeSocket); ok && v != "" {
		c.Node.SocketPath = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Node.Network == "" {
		c.Node.Network = DefaultNetwork
	}
	if c.Node.PollInterval == "" {
		c.Node.PollInterval = DefaultPollInterval.String()
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return invalid("listen address is empty")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return invalid("log format must be text or json, got " + c.Log.Format)
	}
	if _, err := c.Node.Interval(); err != nil {
		return invalid("node pollInterval: " + err.Error())
	}
	if _, err := c.Node.Magic(); err != nil {
		return err
	}
	if c.Indexer.URL != "" {
		if err := validateURL(c.Indexer.URL, "http", "https"); err != nil {
			return invalid("indexer url: " + err.Error())
		}
	}
	if c.Indexer.FeedURL != "" {
		if err := validateURL(c.Indexer.FeedURL, "ws", "wss"); err != nil {
			return invalid("indexer feedUrl: " + err.Error())
		}
	}
	if c.Blobs.Prefix != "" && c.Blobs.Bucket == "" {
		return invalid("blobs prefix set without bucket")
	}
	if c.Blobs.Dir != "" && c.Blobs.Bucket != "" {
		return invalid("blobs dir and bucket are mutually exclusive")
	}
	return nil
}

// HasNode reports whether a node connection is configured.
func (n NodeConfig) HasNode() bool {
	return n.SocketPath != "" || n.Address != ""
}

// Dial returns the network and address to dial for the node.
func (n NodeConfig) Dial() (network, address string) {
	if n.SocketPath != "" {
		return "unix", n.SocketPath
	}
	return "tcp", n.Address
}

// Interval parses PollInterval, falling back to DefaultPollInterval.
func (n NodeConfig) Interval() (time.Duration, error) {
	if n.PollInterval == "" {
		return DefaultPollInterval, nil
	}
	d, err := time.ParseDuration(n.PollInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.Newf(errors.CategoryConfig, "must be positive")
	}
	return d, nil
}

// Magic returns the network magic, resolved from Network when not set.
func (n NodeConfig) Magic() (uint32, error) {
	if n.NetworkMagic != 0 {
		return n.NetworkMagic, nil
	}
	magic, ok := networkMagics[strings.ToLower(n.Network)]
	if !ok {
		return 0, invalid("unknown network " + n.Network).
			WithSuggestion("Use mainnet, preprod, preview or set node.networkMagic")
	}
	return magic, nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return errors.Newf(errors.CategoryConfig, "missing host")
			}
			return nil
		}
	}
	return errors.Newf(errors.CategoryConfig, "scheme must be one of %s", strings.Join(schemes, ", "))
}

func invalid(detail string) *errors.Error {
	return errors.New(errors.CodeConfigInvalid).WithDetail(detail)
}
