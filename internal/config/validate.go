package config

import (
	"fmt"
	"slices"
	"time"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Calendly.ClientID == "" {
		issues = append(issues, ValidationIssue{
			Path:    "calendly.clientId",
			Message: "client id is required (set CALENDLY_CLIENT_ID or calendly.clientId)",
		})
	}
	if cfg.Calendly.ClientSecret == "" {
		issues = append(issues, ValidationIssue{
			Path:    "calendly.clientSecret",
			Message: "client secret is required (set CALENDLY_CLIENT_SECRET or calendly.clientSecret)",
		})
	}
	if cfg.Calendly.RedirectURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "calendly.redirectUrl",
			Message: "redirect url is required (set CALENDLY_REDIRECT_URI or calendly.redirectUrl)",
		})
	}
	if cfg.Calendly.WindowDays < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "calendly.windowDays",
			Message: fmt.Sprintf("window must be at least 1 day, got %d", cfg.Calendly.WindowDays),
		})
	}
	if cfg.Calendly.MaxSlots < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "calendly.maxSlots",
			Message: fmt.Sprintf("must present at least 1 slot, got %d", cfg.Calendly.MaxSlots),
		})
	}
	if cfg.Calendly.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Calendly.Timezone); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "calendly.timezone",
				Message: fmt.Sprintf("unknown timezone %q", cfg.Calendly.Timezone),
			})
		}
	}

	if cfg.Auth.StateSecret == "" {
		issues = append(issues, ValidationIssue{
			Path:    "auth.stateSecret",
			Message: "state secret is required (set BOOKBOT_STATE_SECRET or auth.stateSecret)",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	if cfg.Channels.IRC != nil {
		if cfg.Channels.IRC.Server == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.server",
				Message: "server is required",
			})
		}
		if cfg.Channels.IRC.Nick == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.nick",
				Message: "nick is required",
			})
		}
	}

	return issues
}
