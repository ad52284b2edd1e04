package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type SMMConfig struct {
	Env        string `yaml:"env" env:"SMM_ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	GRPCServer `yaml:"grpc_server"`
	SMMDB      `yaml:"smm_db"`
	LogConfig  `yaml:"log_config"`
	Kafka      `yaml:"kafka"`
	Redis      `yaml:"redis"`
	Auth       `yaml:"auth"`
	Sync       `yaml:"sync"`
	Ledger     `yaml:"ledger"`
	Providers  `yaml:"providers"`
}

type HTTPServer struct {
	Host         string        `yaml:"host" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"SMM_HTTP_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"30s"`
}

type GRPCServer struct {
	Host string `yaml:"host" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"SMM_GRPC_PORT" env-default:"50051"`
}

type SMMDB struct {
	Dsn            string `yaml:"dsn" env:"SMM_DB_DSN"`
	MigrationsPath string `yaml:"migrations_path" env:"SMM_MIGRATIONS_PATH"`
	MaxOpenConns   int    `yaml:"max_open_conns" env-default:"20"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env-default:"info"`
	LogFormat string `yaml:"log_format" env-default:"json"`
	LogOutput string `yaml:"log_output" env-default:"stdout"`
}

type Kafka struct {
	Brokers            []string `yaml:"brokers" env:"SMM_KAFKA_BROKERS" env-separator:","`
	NotificationsTopic string   `yaml:"notifications_topic" env-default:"smm-notifications"`
	ProviderTopic      string   `yaml:"provider_topic" env-default:"smm-provider-config"`
	GroupID            string   `yaml:"group_id" env-default:"smm-service"`
}

func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type Redis struct {
	Addr     string `yaml:"addr" env:"SMM_REDIS_ADDR"`
	Password string `yaml:"password" env:"SMM_REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"SMM_JWT_SECRET"`
}

type Sync struct {
	StatusSpec     string        `yaml:"status_spec" env-default:"@every 2m"`
	ReconcileSpec  string        `yaml:"reconcile_spec" env-default:"@every 10m"`
	BalanceSpec    string        `yaml:"balance_spec" env-default:"@every 30m"`
	CurrencySpec   string        `yaml:"currency_spec" env-default:"@every 1m"`
	BatchLimit     int           `yaml:"batch_limit" env-default:"500"`
	UnconfirmedAge time.Duration `yaml:"unconfirmed_age" env-default:"5m"`
	LeaseTTL       time.Duration `yaml:"lease_ttl" env-default:"90s"`
	DefaultWorkers int           `yaml:"default_workers" env-default:"4"`
	PassTimeout    time.Duration `yaml:"pass_timeout" env-default:"90s"`
}

type Ledger struct {
	BaseCurrency         string `yaml:"base_currency" env-default:"USD"`
	RefundPartialRemains bool   `yaml:"refund_partial_remains" env-default:"true"`
	// RateFeedURL, when set, refreshes currency rates on currency_spec.
	RateFeedURL     string        `yaml:"rate_feed_url" env:"SMM_RATE_FEED_URL"`
	RateFeedTimeout time.Duration `yaml:"rate_feed_timeout" env-default:"5s"`
}

type Providers struct {
	Timeout        time.Duration `yaml:"timeout" env-default:"15s"`
	MaxRetries     int           `yaml:"max_retries" env-default:"3"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env-default:"300ms"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env-default:"5s"`
	DefaultRate    float64       `yaml:"default_rate" env-default:"5"`
}

func MustLoad() *SMMConfig {

	// Processing env config variable and file
	configPath := os.Getenv("SMM_CONFIG_PATH")

	if configPath == "" {
		log.Fatalf("SMM_CONFIG_PATH was not found\n")
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	// YAML to struct object
	var cfg SMMConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}
