package config

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"OTEL"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type        string `mapstructure:"TYPE"`
		Host        string `mapstructure:"HOST"`
		Port        string `mapstructure:"PORT"`
		DBNAME      string `mapstructure:"DBNAME"`
		User        string `mapstructure:"USER"`
		Password    string `mapstructure:"PASSWORD"`
		SSLMode     string `mapstructure:"SSLMODE"`
		Timezone    string `mapstructure:"TIMEZONE"`
		AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`
		Connect     struct {
			Attempts int           `mapstructure:"ATTEMPTS"`
			Backoff  time.Duration `mapstructure:"BACKOFF"`
		} `mapstructure:"CONNECT"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Telegram struct {
		APIBaseURL  string        `mapstructure:"API_BASE_URL"`
		Timeout     time.Duration `mapstructure:"TIMEOUT"`
		WebhookPath string        `mapstructure:"WEBHOOK_PATH"`
	} `mapstructure:"TELEGRAM"`
	PostFetch struct {
		BaseURL string        `mapstructure:"BASE_URL"`
		APIKey  string        `mapstructure:"API_KEY"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"POST_FETCH"`
	Commands struct {
		ScheduleURL string `mapstructure:"SCHEDULE_URL"`
		// Entries are either "username" (every organization) or "org_id:username".
		BudgetOperators     []string `mapstructure:"BUDGET_OPERATORS"`
		BudgetTitlePrefixes []string `mapstructure:"BUDGET_TITLE_PREFIXES"`
	} `mapstructure:"COMMANDS"`
	Submission struct {
		LockTTL   time.Duration `mapstructure:"LOCK_TTL"`
		TaskQueue string        `mapstructure:"TASK_QUEUE"`
	} `mapstructure:"SUBMISSION"`
	// Bootstrap seeds one organization on startup when Slug, WebhookSecret
	// and BotToken are all set.
	Bootstrap struct {
		Name          string `mapstructure:"NAME"`
		Slug          string `mapstructure:"SLUG"`
		WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`
		BotToken      string `mapstructure:"BOT_TOKEN"`
		BotUsername   string `mapstructure:"BOT_USERNAME"`
	} `mapstructure:"BOOTSTRAP"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "botgateway")
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 10*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.AUTO_MIGRATE", true)
	v.SetDefault("DATABASE.CONNECT.ATTEMPTS", 5)
	v.SetDefault("DATABASE.CONNECT.BACKOFF", 3*time.Second)
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)
	v.SetDefault("TELEGRAM.API_BASE_URL", "https://api.telegram.org")
	v.SetDefault("TELEGRAM.TIMEOUT", 10*time.Second)
	v.SetDefault("TELEGRAM.WEBHOOK_PATH", "/webhook/telegram")
	v.SetDefault("POST_FETCH.TIMEOUT", 15*time.Second)
	v.SetDefault("SUBMISSION.LOCK_TTL", 30*time.Second)
	v.SetDefault("SUBMISSION.TASK_QUEUE", "deliverables")
}

// bindEnvs registers every mapstructure key of t so AutomaticEnv can fill keys
// that have neither a default nor a config file entry.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			bindEnvs(v, f.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

func LoadConfig(p Params) *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	bindEnvs(config, reflect.TypeOf(Config{}), "")
	setDefaults(config)

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	if p.Vault != nil {
		ctx := context.Background()

		zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
		secret, err := p.Vault.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
		if err != nil {
			zap.L().Error("failed get secret from vault", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Info("Success Get Secret")

		get := func(key, fallback string) string {
			if val, ok := secret.Data.Data[key].(string); ok && val != "" {
				return val
			}
			return fallback
		}

		cfg.Database.User = get("database_user", cfg.Database.User)
		cfg.Database.Password = get("database_password", cfg.Database.Password)
		cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
		cfg.PostFetch.APIKey = get("post_fetch_api_key", cfg.PostFetch.APIKey)
		cfg.Bootstrap.WebhookSecret = get("bootstrap_webhook_secret", cfg.Bootstrap.WebhookSecret)
		cfg.Bootstrap.BotToken = get("bootstrap_bot_token", cfg.Bootstrap.BotToken)
	}

	return &cfg
}
