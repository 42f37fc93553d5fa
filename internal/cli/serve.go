package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gostudy/bookbot/internal/auth"
	"github.com/gostudy/bookbot/internal/channel"
	"github.com/gostudy/bookbot/internal/channel/irc"
	"github.com/gostudy/bookbot/internal/channel/webchat"
	"github.com/gostudy/bookbot/internal/config"
	"github.com/gostudy/bookbot/internal/flow"
	"github.com/gostudy/bookbot/internal/gateway"
	"github.com/gostudy/bookbot/internal/logging"
	"github.com/gostudy/bookbot/internal/metrics"
	"github.com/gostudy/bookbot/internal/routing"
	"github.com/gostudy/bookbot/internal/scheduling"
	"github.com/gostudy/bookbot/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booking bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if logLevel == "" && cfg.Logging.Level != "" {
				log = logging.New(nil, cfg.Logging.Level)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			dbPath := cfg.Store.Path
			if dbPath == "" {
				dbPath = filepath.Join(paths.Data, "bookbot.db")
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			tokens := store.NewSQLiteTokenStore(db)
			log.Info().Str("path", dbPath).Msg("credential store ready")

			promReg := prometheus.NewRegistry()
			collector := metrics.NewCollector(promReg)

			calendly := scheduling.NewClient(scheduling.Options{
				BaseURL:        cfg.Calendly.APIBaseURL,
				Timezone:       cfg.Calendly.Timezone,
				WindowDays:     cfg.Calendly.WindowDays,
				MaxSlots:       cfg.Calendly.MaxSlots,
				SchedulingLink: cfg.Calendly.SchedulingLink,
				Timeout:        time.Duration(cfg.Calendly.TimeoutSeconds) * time.Second,
			}, collector, log)

			signer := auth.NewStateSigner(cfg.Auth.StateSecret,
				time.Duration(cfg.Auth.StateTTLMinutes)*time.Minute)
			exchanger := auth.NewExchanger(cfg.Calendly, signer, tokens, log)
			authHandler := auth.NewHandler(exchanger, log,
				auth.WithConnectRecorder(collector))

			channels := channel.NewRegistry(log)

			web := webchat.New(cfg.Gateway.AllowedOrigins, log)
			if err := channels.Register(web); err != nil {
				return err
			}

			if cfg.Channels.IRC != nil {
				if err := channels.Register(irc.New(*cfg.Channels.IRC, log)); err != nil {
					return err
				}
			}

			publicURL := cfg.Gateway.PublicURL
			if publicURL == "" {
				publicURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Gateway.Port)
			}
			booking := flow.New(tokens, calendly, publicURL, log)

			router := routing.NewRouter(channels, booking, log,
				routing.WithEventRecorder(collector))
			router.Bind()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			channels.StartAll(ctx)
			defer channels.StopAll(context.Background())

			log.Info().
				Int("channels", channels.Count()).
				Str("publicUrl", publicURL).
				Msg("booking flow active")

			srv := gateway.New(cfg.Gateway, authHandler, web, channels, promReg, log)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
