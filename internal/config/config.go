package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Chain     ChainConfig     `yaml:"chain"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`

	// Tasks a participant must complete to enter the draw
	RequiredTasks []string `yaml:"required_tasks"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the campaign store. Driver "memory" keeps everything in process.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, memory
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds the lib/pq connection URL, escaping credentials
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type QueueConfig struct {
	Driver     string `yaml:"driver"` // memory, amqp
	URL        string `yaml:"url"`
	MaxRetries int    `yaml:"max_retries"`
}

// ChainConfig points at the campaign contract and the SQUDY token.
// An empty RPCURL disables every on-chain call.
type ChainConfig struct {
	RPCURL          string        `yaml:"rpc_url"`
	ChainID         int64         `yaml:"chain_id"`
	CampaignAddress string        `yaml:"campaign_address"`
	TokenAddress    string        `yaml:"token_address"`
	OperatorKey     string        `yaml:"operator_key"`
	TokenDecimals   int32         `yaml:"token_decimals"`
	CallTimeout     time.Duration `yaml:"call_timeout"`
	TxTimeout       time.Duration `yaml:"tx_timeout"` // send + wait for mining
}

func (c ChainConfig) Enabled() bool {
	return c.RPCURL != ""
}

type AuthConfig struct {
	AdminWallets    []string      `yaml:"admin_wallets"`
	SignatureMaxAge time.Duration `yaml:"signature_max_age"`
}

type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// ArchiveConfig selects where draw receipts are kept: a local bolt file or an S3/R2 bucket.
type ArchiveConfig struct {
	Driver          string `yaml:"driver"` // bolt, s3
	Path            string `yaml:"path"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Prefix          string `yaml:"prefix"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"` // empty = serve on the API listener
	Path       string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Load reads the YAML file at path (optional), applies defaults and environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional, the process environment wins either way
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 3
	}

	if c.Chain.TokenDecimals == 0 {
		c.Chain.TokenDecimals = 18
	}
	if c.Chain.CallTimeout == 0 {
		c.Chain.CallTimeout = 20 * time.Second
	}
	if c.Chain.TxTimeout == 0 {
		c.Chain.TxTimeout = 3 * time.Minute
	}

	if c.Auth.SignatureMaxAge == 0 {
		c.Auth.SignatureMaxAge = 5 * time.Minute
	}

	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = time.Minute
	}

	if c.Archive.Driver == "" {
		c.Archive.Driver = "bolt"
	}
	if c.Archive.Path == "" {
		c.Archive.Path = "data/receipts.db"
	}
	if c.Archive.Region == "" {
		c.Archive.Region = "auto"
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = "draws/"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if len(c.RequiredTasks) == 0 {
		c.RequiredTasks = []string{"twitter_follow", "twitter_like", "twitter_retweet", "telegram_join", "discord_join"}
	}
}

// applyEnvOverrides lets DB_* and the other deployment variables win over the file
func (c *Config) applyEnvOverrides() {
	setString(&c.Server.ListenAddr, "SQUDY_LISTEN_ADDR")

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Queue.Driver, "QUEUE_DRIVER")
	setString(&c.Queue.URL, "AMQP_URL")

	setString(&c.Chain.RPCURL, "CHAIN_RPC_URL")
	setString(&c.Chain.CampaignAddress, "CAMPAIGN_CONTRACT_ADDRESS")
	setString(&c.Chain.TokenAddress, "TOKEN_CONTRACT_ADDRESS")
	setString(&c.Chain.OperatorKey, "OPERATOR_PRIVATE_KEY")
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Chain.ChainID = id
		}
	}

	if v := os.Getenv("ADMIN_WALLETS"); v != "" {
		c.Auth.AdminWallets = splitList(v)
	}

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		c.Scheduler.Enabled = strings.EqualFold(v, "true")
	}

	setString(&c.Archive.Driver, "ARCHIVE_DRIVER")
	setString(&c.Archive.Bucket, "R2_BUCKET_NAME")
	setString(&c.Archive.Endpoint, "ARCHIVE_ENDPOINT")
	setString(&c.Archive.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&c.Archive.AccessKeySecret, "R2_ACCESS_KEY_SECRET")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Queue.Driver {
	case "memory":
	case "amqp":
		if c.Queue.URL == "" {
			return fmt.Errorf("queue.url is required for amqp")
		}
	default:
		return fmt.Errorf("unknown queue driver %q", c.Queue.Driver)
	}

	if c.Chain.Enabled() && c.Chain.CampaignAddress == "" {
		return fmt.Errorf("chain.campaign_address is required when chain.rpc_url is set")
	}

	switch c.Archive.Driver {
	case "bolt":
	case "s3":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket is required for s3")
		}
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}

	known := map[string]bool{
		"twitter_follow": true, "twitter_like": true, "twitter_retweet": true,
		"telegram_join": true, "discord_join": true,
	}
	for _, t := range c.RequiredTasks {
		if !known[t] {
			return fmt.Errorf("unknown required task %q", t)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
