package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cron     CronConfig     `mapstructure:"cron"`
	CRM      CRMConfig      `mapstructure:"crm"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Outbound OutboundConfig `mapstructure:"outbound"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FullSync  string `mapstructure:"full_sync"`
	DeltaSync string `mapstructure:"delta_sync"`
}

type CRMConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PageSize int           `mapstructure:"page_size"`
}

type SyncConfig struct {
	// VisibilityMode is "coupled" (listing visibility mirrors the remote
	// active flag) or "decoupled" (sync never touches visibility).
	VisibilityMode   string `mapstructure:"visibility_mode"`
	NewListingFanout int    `mapstructure:"new_listing_fanout"`
	FetchPhotos      bool   `mapstructure:"fetch_photos"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

type NotifyConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type OutboundConfig struct {
	CreateDeals bool `mapstructure:"create_deals"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.full_sync", "0 0 3 * * *")
	v.SetDefault("cron.delta_sync", "0 */10 * * * *")
	v.SetDefault("crm.base_url", "")
	v.SetDefault("crm.api_token", "")
	v.SetDefault("crm.timeout", "15s")
	v.SetDefault("crm.page_size", 200)
	v.SetDefault("sync.visibility_mode", "coupled")
	v.SetDefault("sync.new_listing_fanout", 25)
	v.SetDefault("sync.fetch_photos", true)
	v.SetDefault("webhook.secret", "")
	v.SetDefault("notify.queue_size", 1024)
	v.SetDefault("outbound.create_deals", false)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
