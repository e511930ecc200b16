package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fulfillment/config"
	"fulfillment/pkg/api"
	"fulfillment/pkg/auth"
	"fulfillment/pkg/logger"
	"fulfillment/pkg/models"
	"fulfillment/pkg/notify"
	"fulfillment/service"
	"fulfillment/storage"
	"fulfillment/storage/memory"
	"fulfillment/storage/postgres"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fulfillment",
		Short:         "Order lifecycle and live fulfillment engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand(), newMigrateCommand(), newTokenCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve()
		},
	}
}

func serve() error {
	// 1. Config and logger
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	stg, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", logger.Error(err))
		return err
	}
	defer stg.Close()

	// 3. Notifiers; a missing broker or bot only disables that channel
	notifiers := []notify.Notifier{notify.NewLogNotifier(log.With(logger.String("component", "notify")))}
	if cfg.RabbitMQHost != "" {
		mq, err := notify.DialRabbitMQ(notify.RabbitMQConfig{
			Host:     cfg.RabbitMQHost,
			Port:     cfg.RabbitMQPort,
			User:     cfg.RabbitMQUser,
			Password: cfg.RabbitMQPassword,
			Exchange: cfg.NotifyExchange,
		})
		if err != nil {
			log.Warning("rabbitmq notifier disabled", logger.Error(err))
		} else {
			defer mq.Close()
			notifiers = append(notifiers, mq)
		}
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, map[models.Role]int64{
			models.RoleRestaurantOwner: cfg.TelegramRestaurant,
			models.RoleCustomer:        cfg.TelegramCustomer,
			models.RoleCourier:         cfg.TelegramCourier,
			models.RoleWaiter:          cfg.TelegramWaiter,
		})
		if err != nil {
			log.Warning("telegram notifier disabled", logger.Error(err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	dispatcher := notify.NewAsync(log, cfg.NotifyTimeout, notifiers...)

	// 4. Engine and HTTP
	svc := service.New(stg, dispatcher, log)
	router := api.NewRouter(svc, stg, auth.NewSigner(cfg.JWTSecret, 0), log, api.Options{
		AllowOrigins: cfg.CORSAllowOrigins,
		PollInterval: cfg.LocationPollInterval,
	})

	log.Info("fulfillment engine starting",
		logger.String("storage", cfg.StorageDriver),
		logger.Int("notifiers", len(notifiers)),
	)
	err = api.Run(ctx, cfg.HTTPPort, router, log)

	// 5. Let in-flight notifications finish
	dispatcher.Wait()
	log.Info("stopped")
	return err
}

func openStorage(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		log.Warning("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	case config.StorageDriverPostgres:
		pg, err := postgres.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
			switch args[0] {
			case "up":
				return postgres.Migrate(cfg, log, true)
			case "down":
				return postgres.Migrate(cfg, log, false)
			default:
				return fmt.Errorf("unknown direction %q", args[0])
			}
		},
	}
	return cmd
}

// newTokenCommand issues a token for local testing against the API.
func newTokenCommand() *cobra.Command {
	var (
		role         string
		id           int64
		restaurantID int64
		ttl          time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			actor := models.Actor{Role: models.Role(role), ID: id, RestaurantID: restaurantID}
			if !actor.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.NewSigner(cfg.JWTSecret, ttl).GenerateToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "customer|restaurant_owner|courier|waiter")
	cmd.Flags().Int64Var(&id, "id", 0, "actor id")
	cmd.Flags().Int64Var(&restaurantID, "restaurant", 0, "restaurant id for owners and waiters")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
