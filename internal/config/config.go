// Package config holds every knob the engine and its collaborators take
// at construction time. The core never reads the environment itself;
// FromEnv is called once from cmd after godotenv has loaded .env files.
package config

import (
	"os"
	"strconv"
	"time"
)

type Settings struct {
	// Target site.
	HomeURL      string
	SignupURL    string
	DashboardURL string

	// Success criteria, as regular expression sources.
	PostSignupPattern string
	VerifiedPattern   string
	TokenPattern      string

	// Identity.
	EmailPrefix string
	EmailDomain string
	Password    string

	// Webmail.
	MailboxURL       string
	MailSenderMatch  string
	MailLinkPattern  string
	MailPollInterval time.Duration
	MailDeadline     time.Duration
	CookiesFile      string
	CookieTTL        time.Duration

	// Browser.
	Headless       bool
	SlowMotion     time.Duration
	BrowserTimeout time.Duration

	// Retry budgets. Empirically tuned defaults from the original
	// workflow, not guarantees.
	PhaseAttempts int
	FillAttempts  int
	PhaseTimeout  time.Duration

	// Output.
	KeysFile       string
	DiagnosticsDir string
	LogFile        string
	LogLevel       string

	// Debugging baseline: fixed-wait interaction instead of adaptive.
	UseSimpleInteractor bool
	SimpleDelay         time.Duration
}

func Default() Settings {
	return Settings{
		HomeURL:      "https://app.tavily.com/home",
		SignupURL:    "https://app.tavily.com/signup",
		DashboardURL: "https://app.tavily.com/home",

		PostSignupPattern: `(verify|welcome|home|dashboard)`,
		VerifiedPattern:   `app\.tavily\.com/(home|dashboard)`,
		TokenPattern:      `^tvly-[A-Za-z0-9_-]{8,}$`,

		EmailPrefix: "user123",
		EmailDomain: "2925.com",
		Password:    "TavilyAuto123!",

		MailboxURL:       "https://www.2925.com/#/mailList",
		MailSenderMatch:  "tavily",
		MailLinkPattern:  `https://[^\s"'<>]*(verif|confirm)[^\s"'<>]*`,
		MailPollInterval: 30 * time.Second,
		MailDeadline:     5 * time.Minute,
		CookiesFile:      "email_cookies.json",
		CookieTTL:        7 * 24 * time.Hour,

		Headless:       false,
		SlowMotion:     500 * time.Millisecond,
		BrowserTimeout: 30 * time.Second,

		PhaseAttempts: 3,
		FillAttempts:  3,
		PhaseTimeout:  2 * time.Minute,

		KeysFile:       "api_keys.md",
		DiagnosticsDir: "diagnostics",
		LogFile:        "log/tavily-register.log",
		LogLevel:       "info",

		UseSimpleInteractor: false,
		SimpleDelay:         2 * time.Second,
	}
}

// FromEnv overlays environment variables onto the defaults.
func FromEnv() Settings {
	s := Default()

	s.HomeURL = getStr("TAVILY_HOME_URL", s.HomeURL)
	s.SignupURL = getStr("TAVILY_SIGNUP_URL", s.SignupURL)
	s.DashboardURL = getStr("TAVILY_DASHBOARD_URL", s.DashboardURL)

	s.PostSignupPattern = getStr("POST_SIGNUP_PATTERN", s.PostSignupPattern)
	s.VerifiedPattern = getStr("VERIFIED_PATTERN", s.VerifiedPattern)
	s.TokenPattern = getStr("TOKEN_PATTERN", s.TokenPattern)

	s.EmailPrefix = getStr("EMAIL_PREFIX", s.EmailPrefix)
	s.EmailDomain = getStr("EMAIL_DOMAIN", s.EmailDomain)
	s.Password = getStr("DEFAULT_PASSWORD", s.Password)

	s.MailboxURL = getStr("EMAIL_CHECK_URL", s.MailboxURL)
	s.MailSenderMatch = getStr("MAIL_SENDER_MATCH", s.MailSenderMatch)
	s.MailLinkPattern = getStr("MAIL_LINK_PATTERN", s.MailLinkPattern)
	s.MailPollInterval = getSeconds("EMAIL_CHECK_INTERVAL", s.MailPollInterval)
	s.MailDeadline = getSeconds("MAX_EMAIL_WAIT_TIME", s.MailDeadline)
	s.CookiesFile = getStr("COOKIES_FILE", s.CookiesFile)

	s.Headless = getBool("HEADLESS", s.Headless)
	s.BrowserTimeout = getMillis("BROWSER_TIMEOUT", s.BrowserTimeout)

	s.PhaseAttempts = getInt("PHASE_ATTEMPTS", s.PhaseAttempts)
	s.FillAttempts = getInt("FILL_ATTEMPTS", s.FillAttempts)

	s.KeysFile = getStr("API_KEYS_FILE", s.KeysFile)
	s.DiagnosticsDir = getStr("DIAGNOSTICS_DIR", s.DiagnosticsDir)
	s.LogFile = getStr("LOG_FILE", s.LogFile)
	s.LogLevel = getStr("LOG_LEVEL", s.LogLevel)

	s.UseSimpleInteractor = getBool("USE_SIMPLE_INTERACTOR", s.UseSimpleInteractor)

	return s
}

func getStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

// getSeconds reads an integer number of seconds, matching the units the
// original configuration used.
func getSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return time.Duration(parsed) * time.Second
}

func getMillis(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return time.Duration(parsed) * time.Millisecond
}
