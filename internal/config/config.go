package config

import "fmt"

// Public Calendly endpoints, used when the config leaves them unset.
const (
	DefaultAuthURL    = "https://auth.calendly.com/oauth/authorize"
	DefaultTokenURL   = "https://auth.calendly.com/oauth/token"
	DefaultAPIBaseURL = "https://api.calendly.com"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18890,
			Bind: "loopback",
		},
		Calendly: CalendlyConfig{
			AuthURL:        DefaultAuthURL,
			TokenURL:       DefaultTokenURL,
			APIBaseURL:     DefaultAPIBaseURL,
			Timezone:       "Asia/Tashkent",
			WindowDays:     7,
			MaxSlots:       5,
			TimeoutSeconds: 15,
		},
		Auth: AuthConfig{
			StateTTLMinutes: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
