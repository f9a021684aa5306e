package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"littlelemon/internal/access"
	"littlelemon/internal/config"
	"littlelemon/internal/database"
	"littlelemon/internal/logger"
	"littlelemon/internal/messaging"
	"littlelemon/internal/models"
	"littlelemon/internal/payment"
	"littlelemon/internal/server"
	"littlelemon/internal/services/audit"
	"littlelemon/internal/services/cart"
	"littlelemon/internal/services/catalog"
	"littlelemon/internal/services/group"
	"littlelemon/internal/services/order"
	"littlelemon/internal/services/review"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "littlelemon",
		Short:        "Little Lemon restaurant ordering API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to YAML config file")

	load := func(service string) (*config.Config, *logger.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading config: %w", err)
		}
		log := logger.NewWithOptions(service, logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return cfg, log, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := load("littlelemon-api")
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return runServer(ctx, cfg, log)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := load("littlelemon-migrate")
				if err != nil {
					return err
				}
				db, err := database.New(cmd.Context(), cfg, log)
				if err != nil {
					return fmt.Errorf("failed to initialize database: %w", err)
				}
				defer db.Close()
				return db.RunMigrations(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "audit-subscriber",
			Short: "Consume order events and write an audit trail",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := load("littlelemon-audit")
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return runAuditSubscriber(ctx, cfg, log)
			},
		},
		newIssueTokenCmd(load),
	)
	return root
}

func runServer(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var events order.EventPublisher = order.NopPublisher{}
	if cfg.RabbitMQEnabled() {
		conn, err := messaging.New(ctx, cfg.RabbitMQURL(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		defer conn.Close()
		log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)
		events = messaging.NewPublisher(conn, log)
	} else {
		log.Warn("rabbitmq_disabled", "No RabbitMQ host configured, order events are not published", requestID, nil)
	}

	var gateway payment.Gateway = payment.Disabled{}
	if cfg.Payment.StripeSecretKey != "" {
		gateway = payment.NewStripe(cfg.Payment.StripeSecretKey, cfg.Payment.Currency)
	} else {
		log.Warn("payment_disabled", "No Stripe key configured, checkout is unavailable", requestID, nil)
	}

	orders := order.NewService(order.NewPostgresStore(db), gateway, cfg.PaymentURLs, events, log)

	srv := server.New(log, access.NewResolver(access.NewPostgresTokens(db)), db,
		catalog.NewHandler(catalog.NewService(catalog.NewPostgresStore(db), log), log),
		cart.NewHandler(cart.NewService(cart.NewPostgresStore(db), log), log),
		order.NewHandler(orders, log),
		review.NewHandler(review.NewService(review.NewPostgresStore(db), log), log),
		group.NewHandler(group.NewService(group.NewPostgresStore(db), log), log),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("API started on port %d", cfg.HTTP.Port), requestID, map[string]interface{}{
			"port":     cfg.HTTP.Port,
			"events":   cfg.RabbitMQEnabled(),
			"payments": cfg.Payment.StripeSecretKey != "",
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
	return nil
}

func runAuditSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.RabbitMQEnabled() {
		return errors.New("rabbitmq.host is required for the audit subscriber")
	}

	conn, err := messaging.New(ctx, cfg.RabbitMQURL(), log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	hostname, _ := os.Hostname()
	consumer := messaging.NewConsumer(conn, log, messaging.OrderEventsQueue, "audit-"+hostname, 10)
	return audit.NewSubscriber(consumer, log, os.Stdout).Run(ctx)
}

func newIssueTokenCmd(load func(string) (*config.Config, *logger.Logger, error)) *cobra.Command {
	var (
		email  string
		admin  bool
		groups []string
	)

	cmd := &cobra.Command{
		Use:   "issue-token <username>",
		Short: "Create the user if needed and print a new API token for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, g := range groups {
				if g != models.GroupManager && g != models.GroupDeliveryCrew {
					return fmt.Errorf("unknown group %q (want %s or %s)", g, models.GroupManager, models.GroupDeliveryCrew)
				}
			}

			cfg, log, err := load("littlelemon-cli")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := database.New(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			key, err := newTokenKey()
			if err != nil {
				return err
			}

			err = db.WithTx(ctx, func(tx pgx.Tx) error {
				var userID int64
				if err := tx.QueryRow(ctx, database.UpsertUserSQL, args[0], email, admin).Scan(&userID); err != nil {
					return fmt.Errorf("failed to upsert user: %w", err)
				}
				for _, g := range groups {
					if err := joinGroup(ctx, tx, userID, g); err != nil {
						return err
					}
				}
				if _, err := tx.Exec(ctx, database.InsertAuthTokenSQL, key, userID); err != nil {
					return fmt.Errorf("failed to insert token: %w", err)
				}
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address for the user")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the administrator capability")
	cmd.Flags().StringSliceVar(&groups, "group", nil, "add the user to a group (Manager, Delivery_crew)")
	return cmd
}

func joinGroup(ctx context.Context, tx pgx.Tx, userID int64, name string) error {
	var member bool
	if err := tx.QueryRow(ctx, database.IsGroupMemberSQL, userID, name).Scan(&member); err != nil {
		return fmt.Errorf("failed to check %s membership: %w", name, err)
	}
	if member {
		return nil
	}
	var groupID int64
	if err := tx.QueryRow(ctx, database.GetGroupIDForUpdateSQL, name).Scan(&groupID); err != nil {
		return fmt.Errorf("failed to find group %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, database.AddGroupMemberSQL, userID, groupID); err != nil {
		return fmt.Errorf("failed to add user to %s: %w", name, err)
	}
	return nil
}

// newTokenKey returns 20 random bytes hex encoded, the same shape as the stored keys.
func newTokenKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
