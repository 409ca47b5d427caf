package config

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr string `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"address the HTTP server listens on"`

	LedgerPath string `long:"ledger" env:"LEDGER_PATH" default:"tickets.csv" description:"local ledger file"`
	BackupDir  string `long:"backup-dir" env:"BACKUP_DIR" default:"backups" description:"directory for ledger backups"`

	EventTypes []string `long:"event-type" env:"EVENT_TYPES" env-delim:"," default:"Independencia" default:"Dia de Muertos" description:"event types tickets can be issued for"`

	RemoteLedgerID string        `long:"remote-ledger-id" env:"REMOTE_LEDGER_ID" default:"tickets.csv" description:"id of the remote ledger copy"`
	RemoteTimeout  time.Duration `long:"remote-timeout" env:"REMOTE_TIMEOUT" default:"10s" description:"timeout of a single remote call"`
	SyncInterval   time.Duration `long:"sync-interval" env:"SYNC_INTERVAL" default:"0" description:"interval of scheduled pull reconciliation, 0 disables it"`
	SyncLockTTL    time.Duration `long:"sync-lock-ttl" env:"SYNC_LOCK_TTL" default:"1m" description:"expiry of the reconciliation lock"`

	PostgresURL    string `long:"postgres-url" env:"POSTGRES_URL" description:"scan audit database, empty disables scan auditing"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379"`
	GatewayAddr    string `long:"gateway-addr" env:"GATEWAY_ADDR" default:"http://localhost:8888"`
	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT"`

	AdminUser         string `long:"admin-user" env:"ADMIN_USER" default:"admin"`
	AdminPasswordHash string `long:"admin-password-hash" env:"ADMIN_PASSWORD_HASH" description:"bcrypt hash of the admin password"`

	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info"`
}

// Load parses args on top of the environment. Flags win over env vars.
func Load(args []string) (Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if len(c.EventTypes) == 0 {
		return fmt.Errorf("at least one event type is required")
	}
	if c.RemoteTimeout <= 0 {
		return fmt.Errorf("remote timeout must be positive, got %s", c.RemoteTimeout)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("sync interval cannot be negative, got %s", c.SyncInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
