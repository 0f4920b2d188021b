package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	configPathEnv = "PAPER_DAILY_CONFIG"

	githubTokenEnv = "GITHUB_TOKEN"
	githubRepoEnv  = "GITHUB_REPOSITORY"
	issueLabelEnv  = "ISSUE_LABEL_DAILY"
	webhookURLEnv  = "WEBHOOK_URL"

	llmProviderEnv     = "LLM_PROVIDER"
	geminiAPIKeyEnv    = "GEMINI_API_KEY"
	geminiModelEnv     = "GEMINI_MODEL"
	deepseekAPIKeyEnv  = "DEEPSEEK_API_KEY"
	deepseekBaseURLEnv = "DEEPSEEK_BASE_URL"
	deepseekModelEnv   = "DEEPSEEK_MODEL"
	openaiAPIKeyEnv    = "OPENAI_API_KEY"
	openaiBaseURLEnv   = "OPENAI_BASE_URL"
	openaiModelEnv     = "OPENAI_MODEL"

	emailEnabledEnv  = "EMAIL_ENABLED"
	mailUserEnv      = "MAIL_USER"
	mailAuthCodeEnv  = "MAIL_AUTH_CODE"
	mailToEnv        = "MAIL_TO"
	mailSMTPHostEnv  = "MAIL_SMTP_HOST"
	mailSMTPPortEnv  = "MAIL_SMTP_PORT"
)

// Providers the generation client can be resolved to.
const (
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	GitHub        GitHubConfig       `yaml:"github"`
	LLM           LLMConfig          `yaml:"llm"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	PDF           PDFConfig          `yaml:"pdf"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Keywords      []string           `yaml:"keywords"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// GitHubConfig identifies the issue-tracker archive store.
type GitHubConfig struct {
	Token      string `yaml:"token"`
	Repository string `yaml:"repository"` // owner/repo
	Label      string `yaml:"label"`
}

// Owner splits the owner half of the repository coordinate.
func (g GitHubConfig) Owner() string {
	owner, _, _ := strings.Cut(g.Repository, "/")
	return owner
}

// Repo splits the repo half of the repository coordinate.
func (g GitHubConfig) Repo() string {
	_, repo, _ := strings.Cut(g.Repository, "/")
	return repo
}

// LLMConfig selects and parameterizes the generation provider.
type LLMConfig struct {
	Provider              string         `yaml:"provider"` // gemini / deepseek / openai
	Gemini                ProviderConfig `yaml:"gemini"`
	DeepSeek              ProviderConfig `yaml:"deepseek"`
	OpenAI                ProviderConfig `yaml:"openai"`
	Temperature           float64        `yaml:"temperature"`
	MaxRetries            int            `yaml:"maxRetries"`
	RetryBaseDelaySeconds int            `yaml:"retryBaseDelaySeconds"`
}

// ProviderConfig wires one concrete generation backend.
type ProviderConfig struct {
	APIKey          string `yaml:"apiKey"`
	BaseURL         string `yaml:"baseUrl"`
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"maxOutputTokens"`
}

// Selected returns the provider config matching the configured provider name.
func (l LLMConfig) Selected() (ProviderConfig, bool) {
	switch l.Provider {
	case ProviderGemini:
		return l.Gemini, true
	case ProviderDeepSeek:
		return l.DeepSeek, true
	case ProviderOpenAI:
		return l.OpenAI, true
	}
	return ProviderConfig{}, false
}

// PipelineConfig bounds the per-run processing loop.
type PipelineConfig struct {
	RecentHours   int `yaml:"recentHours"`   // only papers newer than this window
	MaxResults    int `yaml:"maxResults"`    // per source category
	PacingSeconds int `yaml:"pacingSeconds"` // fixed sleep between items
	BodyLimit     int `yaml:"bodyLimit"`     // hard archival body bound, chars
}

// PDFConfig controls content enrichment.
type PDFConfig struct {
	Mode           string `yaml:"mode"` // "partial" | "full"
	FirstPages     int    `yaml:"firstPages"`
	LastPages      int    `yaml:"lastPages"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	MaxChars       int    `yaml:"maxChars"`
}

// MaxInputChars is the per-call content cap handed to the generation
// provider; full-document extraction grants a larger window.
func (p PDFConfig) MaxInputChars() int {
	if p.Mode == "full" {
		return 30000
	}
	return 12000
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	WebhookURL string      `yaml:"webhookUrl"` // Discord or Slack, detected from the URL
	Email      EmailConfig `yaml:"email"`
}

// EmailConfig wires the SMTP digest channel.
type EmailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SMTPHost string `yaml:"smtpHost"`
	SMTPPort int    `yaml:"smtpPort"`
	User     string `yaml:"user"`
	AuthCode string `yaml:"authCode"`
	To       string `yaml:"to"`
}

// SchedulerConfig defines when the daemon mode runs the pipeline.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SiteConfig describes a single source site with its scanner strategy.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds a concrete endpoint to scan (an arXiv listing URL or
// an RSS feed URL).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. A .env file in the working directory is loaded first for local
// development, without overwriting variables already set.
func Load() Config {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Printf("config: cannot load .env: %v", err)
		}
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = defaultConfig().Keywords
	}

	return cfg
}

// Validate checks that every setting required for a run is present.
// A non-nil return is fatal: the process must exit non-zero before any
// pipeline work starts.
func (c Config) Validate() error {
	var problems []error

	switch c.LLM.Provider {
	case ProviderGemini, ProviderDeepSeek, ProviderOpenAI:
		selected, _ := c.LLM.Selected()
		if selected.APIKey == "" {
			problems = append(problems, fmt.Errorf("LLM provider %q selected but its API key is missing", c.LLM.Provider))
		}
	default:
		problems = append(problems, fmt.Errorf("llm.provider must be one of gemini, deepseek, openai; got %q", c.LLM.Provider))
	}

	if c.GitHub.Token == "" {
		problems = append(problems, errors.New("github.token is required"))
	}
	if c.GitHub.Repository == "" || !strings.Contains(c.GitHub.Repository, "/") {
		problems = append(problems, fmt.Errorf("github.repository must be owner/repo; got %q", c.GitHub.Repository))
	}

	if c.Notifications.WebhookURL == "" {
		log.Printf("config: WEBHOOK_URL not set, webhook notifications will be skipped")
	}

	return errors.Join(problems...)
}

func (c *Config) applyEnvOverrides() {
	setString(&c.GitHub.Token, githubTokenEnv)
	setString(&c.GitHub.Repository, githubRepoEnv)
	setString(&c.GitHub.Label, issueLabelEnv)
	setString(&c.Notifications.WebhookURL, webhookURLEnv)

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	setString(&c.LLM.Gemini.APIKey, geminiAPIKeyEnv)
	setString(&c.LLM.Gemini.Model, geminiModelEnv)
	setString(&c.LLM.DeepSeek.APIKey, deepseekAPIKeyEnv)
	setString(&c.LLM.DeepSeek.BaseURL, deepseekBaseURLEnv)
	setString(&c.LLM.DeepSeek.Model, deepseekModelEnv)
	setString(&c.LLM.OpenAI.APIKey, openaiAPIKeyEnv)
	setString(&c.LLM.OpenAI.BaseURL, openaiBaseURLEnv)
	setString(&c.LLM.OpenAI.Model, openaiModelEnv)

	if v := os.Getenv(emailEnabledEnv); v != "" {
		c.Notifications.Email.Enabled = strings.EqualFold(v, "true")
	}
	setString(&c.Notifications.Email.User, mailUserEnv)
	setString(&c.Notifications.Email.AuthCode, mailAuthCodeEnv)
	setString(&c.Notifications.Email.To, mailToEnv)
	setString(&c.Notifications.Email.SMTPHost, mailSMTPHostEnv)
	if v := os.Getenv(mailSMTPPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Notifications.Email.SMTPPort = port
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.GitHub.Token != "" {
		base.GitHub.Token = override.GitHub.Token
	}
	if override.GitHub.Repository != "" {
		base.GitHub.Repository = override.GitHub.Repository
	}
	if override.GitHub.Label != "" {
		base.GitHub.Label = override.GitHub.Label
	}

	if override.LLM.Provider != "" {
		base.LLM.Provider = override.LLM.Provider
	}
	base.LLM.Gemini = mergeProvider(base.LLM.Gemini, override.LLM.Gemini)
	base.LLM.DeepSeek = mergeProvider(base.LLM.DeepSeek, override.LLM.DeepSeek)
	base.LLM.OpenAI = mergeProvider(base.LLM.OpenAI, override.LLM.OpenAI)
	if override.LLM.Temperature != 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxRetries != 0 {
		base.LLM.MaxRetries = override.LLM.MaxRetries
	}
	if override.LLM.RetryBaseDelaySeconds != 0 {
		base.LLM.RetryBaseDelaySeconds = override.LLM.RetryBaseDelaySeconds
	}

	if override.Pipeline.RecentHours != 0 {
		base.Pipeline.RecentHours = override.Pipeline.RecentHours
	}
	if override.Pipeline.MaxResults != 0 {
		base.Pipeline.MaxResults = override.Pipeline.MaxResults
	}
	if override.Pipeline.PacingSeconds != 0 {
		base.Pipeline.PacingSeconds = override.Pipeline.PacingSeconds
	}
	if override.Pipeline.BodyLimit != 0 {
		base.Pipeline.BodyLimit = override.Pipeline.BodyLimit
	}

	if override.PDF.Mode != "" {
		base.PDF.Mode = override.PDF.Mode
	}
	if override.PDF.FirstPages != 0 {
		base.PDF.FirstPages = override.PDF.FirstPages
	}
	if override.PDF.LastPages != 0 {
		base.PDF.LastPages = override.PDF.LastPages
	}
	if override.PDF.TimeoutSeconds != 0 {
		base.PDF.TimeoutSeconds = override.PDF.TimeoutSeconds
	}
	if override.PDF.MaxChars != 0 {
		base.PDF.MaxChars = override.PDF.MaxChars
	}

	if override.Notifications.WebhookURL != "" {
		base.Notifications.WebhookURL = override.Notifications.WebhookURL
	}
	if override.Notifications.Email.Enabled {
		base.Notifications.Email = override.Notifications.Email
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if len(override.Keywords) > 0 {
		base.Keywords = override.Keywords
	}
	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func mergeProvider(base, override ProviderConfig) ProviderConfig {
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.MaxOutputTokens != 0 {
		base.MaxOutputTokens = override.MaxOutputTokens
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		GitHub:  GitHubConfig{Label: "daily-paper"},
		LLM: LLMConfig{
			Provider: ProviderDeepSeek,
			Gemini: ProviderConfig{
				Model:           "gemini-2.5-flash",
				MaxOutputTokens: 3072,
			},
			DeepSeek: ProviderConfig{
				BaseURL:         "https://api.deepseek.com/v1",
				Model:           "deepseek-chat",
				MaxOutputTokens: 3000,
			},
			OpenAI: ProviderConfig{
				BaseURL:         "https://api.openai.com/v1",
				Model:           "gpt-4o-mini",
				MaxOutputTokens: 3000,
			},
			Temperature:           1.0,
			MaxRetries:            3,
			RetryBaseDelaySeconds: 30,
		},
		Pipeline: PipelineConfig{
			RecentHours:   48,
			MaxResults:    30,
			PacingSeconds: 20,
			BodyLimit:     65000,
		},
		PDF: PDFConfig{
			Mode:           "partial",
			FirstPages:     3,
			LastPages:      1,
			TimeoutSeconds: 30,
			MaxChars:       50000,
		},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Keywords: []string{
			"distributed systems",
			"operating systems",
			"consensus",
			"RDMA",
			"persistent memory",
			"kernel",
			"file system",
			"storage",
			"fault tolerance",
			"replication",
			"scheduling",
			"virtualization",
			"container",
			"serverless",
			"disaggregated memory",
			"CXL",
		},
		Sites: []SiteConfig{
			{
				Name:    "arxiv",
				Scanner: "arxiv",
				Categories: []CategoryConfig{
					{Name: "cs.OS", URL: "https://arxiv.org/list/cs.OS/recent"},
					{Name: "cs.DC", URL: "https://arxiv.org/list/cs.DC/recent"},
					{Name: "cs.NI", URL: "https://arxiv.org/list/cs.NI/recent"},
				},
			},
			{
				Name:    "usenix",
				Scanner: "rss",
				Categories: []CategoryConfig{
					{Name: "usenix-blog", URL: "https://www.usenix.org/blog/feed"},
				},
			},
		},
	}
}
