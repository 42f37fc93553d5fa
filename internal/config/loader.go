package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so secrets can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Calendly.ClientID = expandEnvVars(cfg.Calendly.ClientID)
	cfg.Calendly.ClientSecret = expandEnvVars(cfg.Calendly.ClientSecret)
	cfg.Auth.StateSecret = expandEnvVars(cfg.Auth.StateSecret)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18890
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Calendly.AuthURL == "" {
		cfg.Calendly.AuthURL = DefaultAuthURL
	}
	if cfg.Calendly.TokenURL == "" {
		cfg.Calendly.TokenURL = DefaultTokenURL
	}
	if cfg.Calendly.APIBaseURL == "" {
		cfg.Calendly.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.Calendly.Timezone == "" {
		cfg.Calendly.Timezone = "Asia/Tashkent"
	}
	if cfg.Calendly.WindowDays == 0 {
		cfg.Calendly.WindowDays = 7
	}
	if cfg.Calendly.MaxSlots == 0 {
		cfg.Calendly.MaxSlots = 5
	}
	if cfg.Calendly.TimeoutSeconds == 0 {
		cfg.Calendly.TimeoutSeconds = 15
	}
	if cfg.Auth.StateTTLMinutes == 0 {
		cfg.Auth.StateTTLMinutes = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads BOOKBOT_* (and the conventional CALENDLY_*)
// environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOOKBOT_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("BOOKBOT_GATEWAY_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("BOOKBOT_PUBLIC_URL"); v != "" {
		cfg.Gateway.PublicURL = v
	}
	if v := os.Getenv("BOOKBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("BOOKBOT_STATE_SECRET"); v != "" {
		cfg.Auth.StateSecret = v
	}
	if v := os.Getenv("CALENDLY_CLIENT_ID"); v != "" {
		cfg.Calendly.ClientID = v
	}
	if v := os.Getenv("CALENDLY_CLIENT_SECRET"); v != "" {
		cfg.Calendly.ClientSecret = v
	}
	if v := os.Getenv("CALENDLY_REDIRECT_URI"); v != "" {
		cfg.Calendly.RedirectURL = v
	}
}
