package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "CONTENTFLOW_CONFIG"

const (
	DefaultPollInterval   = 60 * time.Second
	DefaultRetryBackoff   = 10 * time.Minute
	DefaultMaxAttempts    = 3
	DefaultPublishTimeout = 2 * time.Minute
)

type Scheduler struct {
	DataDir        string        `yaml:"data_dir"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	MaxAttempts    int           `yaml:"max_attempts"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	AutoStart      bool          `yaml:"auto_start"`
}

type LinkedIn struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	APIBaseURL   string `yaml:"api_base_url"`
}

type Facebook struct {
	PageID     string `yaml:"page_id"`
	PageToken  string `yaml:"page_token"`
	APIBaseURL string `yaml:"api_base_url"`
}

type Gemini struct {
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	ReviewModel string `yaml:"review_model"`
	Endpoint    string `yaml:"endpoint"`
}

type HuggingFace struct {
	Token    string `yaml:"token"`
	ModelURL string `yaml:"model_url"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Steps    int    `yaml:"steps"`
}

type R2 struct {
	AccountID  string `yaml:"account_id"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	BucketName string `yaml:"bucket_name"`
	PublicURL  string `yaml:"public_url"`
}

type Config struct {
	Scheduler   Scheduler   `yaml:"scheduler"`
	LinkedIn    LinkedIn    `yaml:"linkedin"`
	Facebook    Facebook    `yaml:"facebook"`
	Gemini      Gemini      `yaml:"gemini"`
	HuggingFace HuggingFace `yaml:"huggingface"`
	R2          R2          `yaml:"r2"`
	PostgresURI string      `yaml:"postgres_uri"`
	RedisURI    string      `yaml:"redis_uri"`
	SecretKey   string      `yaml:"secret_key"`
	APIKey      string      `yaml:"api_key"`
	ListenAddr  string      `yaml:"listen_addr"`
	LogLevel    string      `yaml:"log_level"`
}

// LoadConfig layers defaults, the optional YAML file named by CONTENTFLOW_CONFIG
// and finally environment variables (a .env file is honoured when present).
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fileCfg := *c
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return err
	}
	*c = fileCfg
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Scheduler.DataDir = getEnv("DATA_DIR", c.Scheduler.DataDir)
	c.Scheduler.PollInterval = getDuration("POLL_INTERVAL", c.Scheduler.PollInterval)
	c.Scheduler.RetryBackoff = getDuration("RETRY_BACKOFF", c.Scheduler.RetryBackoff)
	c.Scheduler.MaxAttempts = getInt("MAX_ATTEMPTS", c.Scheduler.MaxAttempts)
	c.Scheduler.PublishTimeout = getDuration("PUBLISH_TIMEOUT", c.Scheduler.PublishTimeout)
	c.Scheduler.AutoStart = getBool("SCHEDULER_AUTOSTART", c.Scheduler.AutoStart)

	c.LinkedIn.AccessToken = getEnv("LINKEDIN_ACCESS_TOKEN", c.LinkedIn.AccessToken)
	c.LinkedIn.RefreshToken = getEnv("LINKEDIN_REFRESH_TOKEN", c.LinkedIn.RefreshToken)
	c.LinkedIn.ClientID = getEnv("LINKEDIN_CLIENT_ID", c.LinkedIn.ClientID)
	c.LinkedIn.ClientSecret = getEnv("LINKEDIN_CLIENT_SECRET", c.LinkedIn.ClientSecret)
	c.LinkedIn.APIBaseURL = getEnv("LINKEDIN_API_BASE_URL", c.LinkedIn.APIBaseURL)

	c.Facebook.PageID = getEnv("FACEBOOK_PAGE_ID", c.Facebook.PageID)
	c.Facebook.PageToken = getEnv("FACEBOOK_ACCESS_TOKEN", c.Facebook.PageToken)
	c.Facebook.APIBaseURL = getEnv("FACEBOOK_API_BASE_URL", c.Facebook.APIBaseURL)

	c.Gemini.APIKey = getEnv("GOOGLE_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = getEnv("GEMINI_MODEL", c.Gemini.Model)
	c.Gemini.ReviewModel = getEnv("GEMINI_REVIEW_MODEL", c.Gemini.ReviewModel)
	c.Gemini.Endpoint = getEnv("GEMINI_ENDPOINT", c.Gemini.Endpoint)

	c.HuggingFace.Token = getEnv("HF_TOKEN", c.HuggingFace.Token)
	c.HuggingFace.ModelURL = getEnv("HF_MODEL_URL", c.HuggingFace.ModelURL)

	c.R2.AccountID = getEnv("R2_ACCOUNT_ID", c.R2.AccountID)
	c.R2.AccessKey = getEnv("R2_ACCESS_KEY", c.R2.AccessKey)
	c.R2.SecretKey = getEnv("R2_SECRET_KEY", c.R2.SecretKey)
	c.R2.BucketName = getEnv("R2_BUCKET_NAME", c.R2.BucketName)
	c.R2.PublicURL = getEnv("R2_PUBLIC_URL", c.R2.PublicURL)

	c.PostgresURI = getEnv("POSTGRES_URI", c.PostgresURI)
	c.RedisURI = getEnv("REDIS_URI", c.RedisURI)
	c.SecretKey = getEnv("SECRET_KEY", c.SecretKey)
	c.APIKey = getEnv("API_KEY", c.APIKey)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// normalize replaces non-positive scheduler values with the defaults.
func (c *Config) normalize() {
	if c.Scheduler.DataDir == "" {
		c.Scheduler.DataDir = "data"
	}
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = DefaultPollInterval
	}
	if c.Scheduler.RetryBackoff <= 0 {
		c.Scheduler.RetryBackoff = DefaultRetryBackoff
	}
	if c.Scheduler.MaxAttempts <= 0 {
		c.Scheduler.MaxAttempts = DefaultMaxAttempts
	}
	if c.Scheduler.PublishTimeout <= 0 {
		c.Scheduler.PublishTimeout = DefaultPublishTimeout
	}
}

func defaultConfig() *Config {
	return &Config{
		Scheduler: Scheduler{
			DataDir:        "data",
			PollInterval:   DefaultPollInterval,
			RetryBackoff:   DefaultRetryBackoff,
			MaxAttempts:    DefaultMaxAttempts,
			PublishTimeout: DefaultPublishTimeout,
			AutoStart:      true,
		},
		LinkedIn: LinkedIn{APIBaseURL: "https://api.linkedin.com"},
		Facebook: Facebook{APIBaseURL: "https://graph.facebook.com/v18.0"},
		Gemini: Gemini{
			Model:       "gemini-2.5-flash",
			ReviewModel: "gemini-1.5-flash",
		},
		HuggingFace: HuggingFace{
			ModelURL: "https://api-inference.huggingface.co/models/black-forest-labs/FLUX.1-schnell",
			Width:    1024,
			Height:   1024,
			Steps:    4,
		},
		ListenAddr: ":3000",
		LogLevel:   "info",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s '%s', using default %s: %v", key, value, defaultValue, err)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s '%s', using default %d: %v", key, value, defaultValue, err)
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid %s '%s', using default %t: %v", key, value, defaultValue, err)
		return defaultValue
	}
	return b
}
