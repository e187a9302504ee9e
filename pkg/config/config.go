package config

import (
	"fmt"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" env-default:"8080"`
	Env      string `env:"ENV" env-default:"development"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	Firebase struct {
		CredentialsPath string `env:"FIREBASE_CREDENTIALS_PATH"`
		ProjectID       string `env:"FIREBASE_PROJECT_ID"`
		AuthRequired    bool   `env:"AUTH_REQUIRED" env-default:"true"`
	}

	Store struct {
		// firestore, mongo or memory
		Backend        string `env:"STORE_BACKEND" env-default:"firestore"`
		MemorySeedPath string `env:"MEMORY_SEED_PATH"`
		OrderField     string `env:"STORE_ORDER_FIELD" env-default:"createdAt"`
		ReelsColl      string `env:"REELS_COLLECTION" env-default:"reels"`
		PostsColl      string `env:"POSTS_COLLECTION" env-default:"posts"`
		StoriesColl    string `env:"STORIES_COLLECTION" env-default:"stories"`
	}

	Mongo struct {
		URI      string `env:"MONGO_URI"`
		Database string `env:"MONGO_DATABASE" env-default:"shunye"`
	}

	Postgres struct {
		ConnStr string `env:"POSTGRES_CONN_STR"`
	}

	CDN struct {
		ImagesHost         string        `env:"CF_IMAGES_HOST" env-default:"imagedelivery.net"`
		ImagesAccountHash  string        `env:"CF_IMAGES_ACCOUNT_HASH"`
		StreamCustomerCode string        `env:"CF_STREAM_CUSTOMER_CODE"`
		StreamHost         string        `env:"CF_STREAM_HOST"`
		ManifestFile       string        `env:"CF_STREAM_MANIFEST" env-default:"video.m3u8"`
		Placeholder        string        `env:"IMAGE_PLACEHOLDER" env-default:"/placeholder.svg"`
		ImagePreset        string        `env:"IMAGE_PRESET" env-default:"public"`
		ProbeTimeout       time.Duration `env:"MANIFEST_PROBE_TIMEOUT" env-default:"5s"`
	}

	Feed struct {
		ReelsPageSize       int           `env:"REELS_PAGE_SIZE" env-default:"10"`
		PostsPageSize       int           `env:"POSTS_PAGE_SIZE" env-default:"10"`
		StoriesPageSize     int           `env:"STORIES_PAGE_SIZE" env-default:"20"`
		ScrollThreshold     float64       `env:"SCROLL_THRESHOLD_PX" env-default:"1000"`
		ScrollThrottle      time.Duration `env:"SCROLL_THROTTLE" env-default:"100ms"`
		VisibilityThreshold float64       `env:"VISIBILITY_THRESHOLD" env-default:"0.8"`
		BottomMargin        float64       `env:"VISIBILITY_BOTTOM_MARGIN" env-default:"0.1"`
	}

	Story struct {
		TickInterval time.Duration `env:"STORY_TICK_INTERVAL" env-default:"100ms"`
		Step         int           `env:"STORY_PROGRESS_STEP" env-default:"2"`
	}

	Session struct {
		TTL        time.Duration `env:"SESSION_TTL" env-default:"30m"`
		SweepEvery time.Duration `env:"SESSION_SWEEP_INTERVAL" env-default:"1m"`
	}
}

// Load reads .env when present, then the process environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		help, _ := cleanenv.GetDescription(cfg, nil)
		return nil, fmt.Errorf("read configuration: %w\n%s", err, help)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StreamHost is the configured stream host, derived from the customer code when unset
func (c *Config) StreamHost() string {
	if c.CDN.StreamHost != "" {
		return c.CDN.StreamHost
	}
	if c.CDN.StreamCustomerCode != "" {
		return media.StreamHost(c.CDN.StreamCustomerCode)
	}
	return ""
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "firestore", "mongo", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Store.Backend == "mongo" && c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI environment variable not set")
	}
	if c.Firebase.AuthRequired && c.Firebase.CredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH environment variable not set")
	}
	if c.Store.Backend == "firestore" && c.Firebase.CredentialsPath == "" {
		return fmt.Errorf("firestore backend requires FIREBASE_CREDENTIALS_PATH")
	}
	return nil
}
