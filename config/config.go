package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Language selects a template and its variables for one output locale.
type Language struct {
	Tag      string            `yaml:"tag"`
	Template string            `yaml:"template"`
	Vars     map[string]string `yaml:"vars"`
}

// Notify configures the optional SMS alert on terminal failures.
// Twilio credentials come from the environment, only routing lives here.
type Notify struct {
	Enabled    bool   `yaml:"enabled"`
	FromNumber string `yaml:"from_number"`
	ToNumber   string `yaml:"to_number"`
}

// Config is the validated run configuration. The YAML file carries the
// declarative run shape; secrets and deploy toggles come from the
// environment and never travel through generated artifacts.
type Config struct {
	Platform      string     `yaml:"platform"`
	CredentialRef string     `yaml:"credential_ref"`
	OutputDir     string     `yaml:"output_dir"`
	StateDir      string     `yaml:"state_dir"`
	RetryLimit    int        `yaml:"retry_limit"`
	Headless      bool       `yaml:"headless"`
	BudgetSeconds int        `yaml:"budget_seconds"`
	Languages     []Language `yaml:"languages"`
	Notify        Notify     `yaml:"notify"`

	Environment  string
	HTTPPort     string
	HTTPSPort    string
	Domains      []string
	CertCacheDir string
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

// KnownTemplate is injected by the story package at startup so config
// validation can reject unknown template names without importing it.
var KnownTemplate = func(name string) bool { return true }

// Load reads and validates the YAML run configuration at path and
// overlays environment settings.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Platform == "" {
		cfg.Platform = "note"
	}
	if cfg.CredentialRef == "" {
		cfg.CredentialRef = "NOTE"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "out"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = ".storypost"
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.BudgetSeconds <= 0 {
		cfg.BudgetSeconds = 300
	}

	if len(cfg.Languages) == 0 {
		return Config{}, fmt.Errorf("config: language list must not be empty")
	}
	seen := make(map[string]bool)
	for _, lang := range cfg.Languages {
		if lang.Tag == "" {
			return Config{}, fmt.Errorf("config: language entry missing tag")
		}
		if seen[lang.Tag] {
			return Config{}, fmt.Errorf("config: duplicate language tag %q", lang.Tag)
		}
		seen[lang.Tag] = true
		if !KnownTemplate(lang.Template) {
			return Config{}, fmt.Errorf("config: language %q maps to unknown template %q", lang.Tag, lang.Template)
		}
	}

	cfg.Environment = getEnv("ENVIRONMENT", "development")
	cfg.HTTPPort = getEnv("HTTP_PORT", "8086")
	cfg.HTTPSPort = getEnv("HTTPS_PORT", "443")
	cfg.Domains = []string{getEnv("DOMAIN", "example.com")}
	cfg.CertCacheDir = getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com")

	return cfg, nil
}

// Budget is the wall-clock limit for one whole submission.
func (c Config) Budget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}

// Language returns the configuration for a language tag.
func (c Config) Language(tag string) (Language, bool) {
	for _, lang := range c.Languages {
		if lang.Tag == tag {
			return lang, true
		}
	}
	return Language{}, false
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
