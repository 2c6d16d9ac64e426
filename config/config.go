package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		URL string
	}
	Server struct {
		Port int
	}
	Sitemap struct {
		OutputDir string
		Gzip      bool
		MaxURLs   int
		PublicURL string // where sitemap files are reachable, used for index locations
		CacheTTL  string
	}
	Crawler struct {
		UserAgent           string
		CrawlInterval       string
		MaxDepth            int
		MaxConcurrentCrawls int
		Parallelism         int
		Delay               string
		RespectRobots       bool
	}
	Log struct {
		Level string
		Dir   string
	}
}

// LoadConfig reads config.yaml from ./ or ./config, or from the given file
// when path is non-empty. SITEMAPPER_* environment variables override it.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			return nil, err
		}
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("sitemapper")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Default values
	v.SetDefault("database.url", "sitemapper.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("sitemap.outputdir", "public")
	v.SetDefault("sitemap.gzip", false)
	v.SetDefault("sitemap.maxurls", 50000)
	v.SetDefault("sitemap.cachettl", "10m")
	v.SetDefault("crawler.useragent", "Sitemapper Bot v1.0")
	v.SetDefault("crawler.crawlinterval", "24h")
	v.SetDefault("crawler.maxdepth", 10)
	v.SetDefault("crawler.maxconcurrentcrawls", 5)
	v.SetDefault("crawler.parallelism", 2)
	v.SetDefault("crawler.delay", "1s")
	v.SetDefault("crawler.respectrobots", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) GetCrawlDuration() time.Duration {
	duration, err := time.ParseDuration(c.Crawler.CrawlInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return duration
}

func (c *Config) GetCrawlDelay() time.Duration {
	delay, err := time.ParseDuration(c.Crawler.Delay)
	if err != nil {
		return time.Second
	}
	return delay
}

func (c *Config) GetCacheTTL() time.Duration {
	ttl, err := time.ParseDuration(c.Sitemap.CacheTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return ttl
}
