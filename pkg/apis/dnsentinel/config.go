// Package dnsentinel holds the flat runtime Config read from flags,
// environment variables, and an optional YAML file overlay.
package dnsentinel

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin"
	"gopkg.in/yaml.v2"
)

// StoreBackend names the durable key/value backend Config.Store selects.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreEtcd   StoreBackend = "etcd"
	StoreDynamo StoreBackend = "dynamo"
)

// Config is the full set of runtime parameters for the dnsentinel
// process: which domains to watch, where to persist state, how often
// to tick, and where to send notifications.
type Config struct {
	ConfigFile string

	StaticDomains []string
	DynamicSource bool

	Store      StoreBackend
	EtcdURL    string
	DynamoTable string
	AWSRegion  string

	DoHEndpoint  string
	ResolveEvery time.Duration
	Concurrency  int

	WebhookURL     string
	WebhookTimeout time.Duration

	CloudflareAPIToken string

	MetricsAddress string
	LogLevel       string
	LogFormat      string

	DryRun bool
}

// defaultConfig returns the baseline applied before flags, env, and
// file overlays are read.
func defaultConfig() Config {
	return Config{
		Store:          StoreMemory,
		DoHEndpoint:    "https://1.1.1.1/dns-query",
		ResolveEvery:   time.Minute,
		Concurrency:    16,
		WebhookTimeout: 10 * time.Second,
		MetricsAddress: ":7979",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// yamlConfig mirrors the subset of Config that can come from
// --config-file. Flags and environment variables take precedence over
// it where both are set.
type yamlConfig struct {
	StaticDomains      []string `yaml:"domains"`
	Store              string   `yaml:"store"`
	EtcdURL            string   `yaml:"etcdUrl"`
	DynamoTable        string   `yaml:"dynamoTable"`
	AWSRegion          string   `yaml:"awsRegion"`
	DoHEndpoint        string   `yaml:"dohEndpoint"`
	WebhookURL         string   `yaml:"webhookUrl"`
	CloudflareAPIToken string   `yaml:"cloudflareApiToken"`
}

// NewConfig registers flags on a fresh kingpin application, parses
// args, and layers any --config-file on top of flag defaults. Flags
// explicitly set on the command line win over the file; unset flags
// fall back to whatever the file provided. For --store and
// --doh-endpoint, a flag set to its default value counts as unset, so
// the file's value applies.
func NewConfig(args []string) (*Config, error) {
	cfg := defaultConfig()

	a := kingpin.New("dnsentinel", "Watches DNS records and flags anomalous, coordinated, or suspicious changes.")
	a.Version(Version)
	a.HelpFlag.Short('h')

	a.Flag("config-file", "Optional YAML file overlaying domains and backend settings.").
		StringVar(&cfg.ConfigFile)

	a.Flag("domain", "FQDN to monitor. Repeatable.").
		StringsVar(&cfg.StaticDomains)

	a.Flag("dynamic-source", "Also monitor domains added at runtime through the command surface.").
		Default("true").
		BoolVar(&cfg.DynamicSource)

	a.Flag("store", "State backend: memory, etcd, or dynamo.").
		Default(string(StoreMemory)).
		StringVar((*string)(&cfg.Store))

	a.Flag("etcd-url", "etcd endpoint, required when --store=etcd.").
		StringVar(&cfg.EtcdURL)

	a.Flag("dynamo-table", "DynamoDB table name, required when --store=dynamo.").
		StringVar(&cfg.DynamoTable)

	a.Flag("aws-region", "AWS region for the dynamo store.").
		Envar("AWS_REGION").
		StringVar(&cfg.AWSRegion)

	a.Flag("doh-endpoint", "DNS-over-HTTPS resolver endpoint.").
		Default(cfg.DoHEndpoint).
		StringVar(&cfg.DoHEndpoint)

	a.Flag("resolve-every", "Interval between full domain sweeps.").
		Default(cfg.ResolveEvery.String()).
		DurationVar(&cfg.ResolveEvery)

	a.Flag("concurrency", "Maximum domains resolved concurrently per sweep.").
		Default("16").
		IntVar(&cfg.Concurrency)

	a.Flag("webhook-url", "Webhook endpoint notifications are POSTed to.").
		Envar("DNSENTINEL_WEBHOOK_URL").
		StringVar(&cfg.WebhookURL)

	a.Flag("webhook-timeout", "Webhook HTTP client timeout.").
		Default(cfg.WebhookTimeout.String()).
		DurationVar(&cfg.WebhookTimeout)

	a.Flag("cloudflare-api-token", "Cloudflare API token used by the range-refresh tool.").
		Envar("CF_API_TOKEN").
		StringVar(&cfg.CloudflareAPIToken)

	a.Flag("metrics-address", "Address the Prometheus metrics endpoint listens on.").
		Default(cfg.MetricsAddress).
		StringVar(&cfg.MetricsAddress)

	a.Flag("log-level", "One of debug, info, warn, error.").
		Default(cfg.LogLevel).
		EnumVar(&cfg.LogLevel, "debug", "info", "warn", "error")

	a.Flag("log-format", "One of text, json.").
		Default(cfg.LogFormat).
		EnumVar(&cfg.LogFormat, "text", "json")

	a.Flag("dry-run", "Resolve and classify but never emit notifications.").
		BoolVar(&cfg.DryRun)

	if _, err := a.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := overlayFile(&cfg, cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	return &cfg, cfg.validate()
}

func overlayFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(b, &y); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	if len(cfg.StaticDomains) == 0 {
		cfg.StaticDomains = y.StaticDomains
	}
	if y.Store != "" && cfg.Store == StoreMemory {
		cfg.Store = StoreBackend(y.Store)
	}
	if y.DoHEndpoint != "" && cfg.DoHEndpoint == defaultConfig().DoHEndpoint {
		cfg.DoHEndpoint = y.DoHEndpoint
	}
	if cfg.EtcdURL == "" {
		cfg.EtcdURL = y.EtcdURL
	}
	if cfg.DynamoTable == "" {
		cfg.DynamoTable = y.DynamoTable
	}
	if cfg.AWSRegion == "" {
		cfg.AWSRegion = y.AWSRegion
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = y.WebhookURL
	}
	if cfg.CloudflareAPIToken == "" {
		cfg.CloudflareAPIToken = y.CloudflareAPIToken
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreEtcd:
		if c.EtcdURL == "" {
			return fmt.Errorf("--etcd-url is required when --store=etcd")
		}
	case StoreDynamo:
		if c.DynamoTable == "" {
			return fmt.Errorf("--dynamo-table is required when --store=dynamo")
		}
	default:
		return fmt.Errorf("unknown --store %q", c.Store)
	}
	if len(c.StaticDomains) == 0 && !c.DynamicSource {
		return fmt.Errorf("no domains to monitor: set --domain or leave --dynamic-source enabled")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("--concurrency must be >= 1")
	}
	return nil
}

// Version is set at build time via -ldflags; it defaults to "dev".
var Version = "dev"
