package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath      string
	PostgresDSN string
	Telegram    TelegramConfig
	Scheduler   SchedulerConfig
	Archive     ArchiveConfig
	Sources     map[string]*SourceConfig
}

type TelegramConfig struct {
	Token        string
	NotifyChatID int64
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// ArchiveConfig enables raw page snapshot archival when Bucket is set.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type SourceConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Handler       string `yaml:"handler"` // browser | chromedp
	URL           string `yaml:"url"`
	BaseOrigin    string `yaml:"base_origin"`
	WaitSelector  string `yaml:"wait_selector"`
	WaitTimeoutMS int    `yaml:"wait_timeout_ms"`

	Layout        string `yaml:"layout"` // table | grid
	RowSelector   string `yaml:"row_selector"`
	TileSelector  string `yaml:"tile_selector"`
	TitleSelector string `yaml:"title_selector"`
	PriceSelector string `yaml:"price_selector"`
	NextSelector  string `yaml:"next_selector"`
	Paginate      bool   `yaml:"paginate"`
	DateOptional  bool   `yaml:"date_optional"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:      getEnv("DB_PATH", "jobs.db"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		Telegram: TelegramConfig{
			Token:        os.Getenv("TELEGRAM_BOT_TOKEN"),
			NotifyChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: time.Duration(getEnvInt("SCRAPE_INTERVAL_HOURS", 24)) * time.Hour,
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_BUCKET"),
			Region:          getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		},
		Sources: make(map[string]*SourceConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSourceConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSourceConfigs() error {
	configDir := getEnv("SOURCES_DIR", "config/sources")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var src SourceConfig
		if err := yaml.Unmarshal(data, &src); err != nil {
			return err
		}

		c.Sources[src.ID] = &src
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
