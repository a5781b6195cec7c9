package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres Postgres
	Redis    Redis
	API      API
	Quotes   Quotes
	HTTP     HTTP
	Telegram Telegram
	Jobs     Jobs
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"data/migrations"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type API struct {
	Debug    bool `env:"API_DEBUG" envDefault:"false"`
	YahooApi YahooApi
}

type YahooApi struct {
	Url string `env:"YAHOO_API_URL" envDefault:"https://query1.finance.yahoo.com"`
}

// Quotes tunes the quote fallback chain.
type Quotes struct {
	CacheBackend string        `env:"QUOTES_CACHE_BACKEND" envDefault:"memory"` // memory | redis
	CacheTimeout time.Duration `env:"QUOTES_CACHE_TIMEOUT" envDefault:"300s"`
	DelayMin     time.Duration `env:"QUOTES_DELAY_MIN" envDefault:"1s"`
	DelayMax     time.Duration `env:"QUOTES_DELAY_MAX" envDefault:"3s"`
	ApiTimeout   time.Duration `env:"QUOTES_API_TIMEOUT" envDefault:"15s"`
	HistoryDays  int           `env:"QUOTES_HISTORY_DAYS" envDefault:"5"`
}

type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type Telegram struct {
	Enabled    bool          `env:"TELEGRAM_ENABLED" envDefault:"false"`
	Token      string        `env:"TELEGRAM_TOKEN" envDefault:""`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT" envDefault:"10s"`
}

type Jobs struct {
	RefreshPositionsInterval time.Duration `env:"JOBS_REFRESH_POSITIONS_INTERVAL" envDefault:"30m"`
	DailyCloseCrontab        string        `env:"JOBS_DAILY_CLOSE_CRONTAB" envDefault:"0 30 22 * * 1-5"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	if cfg.Quotes.DelayMax < cfg.Quotes.DelayMin {
		log.Fatalf("QUOTES_DELAY_MAX (%s) must not be less than QUOTES_DELAY_MIN (%s)", cfg.Quotes.DelayMax, cfg.Quotes.DelayMin)
	}

	return cfg
}
