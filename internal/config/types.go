package config

// Config is the root configuration for bookbot.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Calendly CalendlyConfig `yaml:"calendly,omitempty"`
	Auth     AuthConfig     `yaml:"auth,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket gateway server.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	PublicURL      string   `yaml:"publicUrl,omitempty"` // external base URL used in OAuth connect links
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// CalendlyConfig holds the OAuth application and scheduling API settings.
type CalendlyConfig struct {
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	RedirectURL  string `yaml:"redirectUrl,omitempty"`

	// Endpoints are overridable for tests; empty values use the public
	// Calendly endpoints.
	AuthURL    string `yaml:"authUrl,omitempty"`
	TokenURL   string `yaml:"tokenUrl,omitempty"`
	APIBaseURL string `yaml:"apiBaseUrl,omitempty"`

	// SchedulingLink optionally pins slot lookups to the event type whose
	// public scheduling URL matches. Empty means "first event type".
	SchedulingLink string `yaml:"schedulingLink,omitempty"`

	Timezone       string `yaml:"timezone,omitempty"`
	WindowDays     int    `yaml:"windowDays,omitempty"`
	MaxSlots       int    `yaml:"maxSlots,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// AuthConfig controls signing of the OAuth state parameter.
type AuthConfig struct {
	StateSecret     string `yaml:"stateSecret,omitempty"`
	StateTTLMinutes int    `yaml:"stateTtlMinutes,omitempty"`
}

// ChannelsConfig defines channel-specific configurations.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// StoreConfig controls credential persistence.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // overrides <data dir>/bookbot.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}
