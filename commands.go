package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roombooking-backend/config"
	"roombooking-backend/models"
	"roombooking-backend/mq"
	"roombooking-backend/routes"
	"roombooking-backend/services"
	"roombooking-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(sweepCmd)

	seedCmd.Flags().String("admin-email", "", "Email of the admin user to create")
	seedCmd.Flags().String("admin-password", "", "Password of the admin user to create")
	seedCmd.Flags().String("admin-name", "Administrator", "Display name of the admin user")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled jobs",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, db, err := bootstrap()
		if err != nil {
			return err
		}
		if err := config.Migrate(db); err != nil {
			return err
		}
		logger.Info("Database migrated")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default rooms and, if asked, an admin user",
	RunE:  runSeed,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire every client credit whose expiry has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, db, err := bootstrap()
		if err != nil {
			return err
		}
		n, err := services.NewCreditService(db, logger, utils.SystemClock).SweepExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired credit for %d clients\n", n)
		return nil
	},
}

func bootstrap() (config.Config, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	logger := config.NewLogger(cfg)
	db, err := config.ConnectDB(cfg, logger)
	if err != nil {
		return cfg, logger, nil, err
	}
	return cfg, logger, db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := config.InitTracer(ctx, cfg, "roombooking-backend")
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	var events services.EventPublisher = services.NoopPublisher{}
	if cfg.AMQPURL != "" {
		pub, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		events = pub
		logger.WithField("exchange", cfg.AMQPExchange).Info("Publishing booking events")
	}

	clock := utils.SystemClock
	tokens := services.NewTokenService(db, logger, services.TokenConfig{
		Secret:       cfg.JWTSecret,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
	}, clock)
	auth := services.NewAuthService(db, logger, services.AuthConfig{
		TokenEndpoint: cfg.TokenEndpoint(),
		UserEndpoint:  cfg.OAuthUserEndpoint,
		ClientID:      cfg.OAuthClientID,
		ClientSecret:  cfg.OAuthClientSecret,
	}, tokens)
	bookings := services.NewBookingService(db, logger, events, clock)
	credits := services.NewCreditService(db, logger, clock)
	reports := services.NewReportService(db, bookings, clock)

	var greetings *services.GreetingService
	if cfg.TwilioEnabled() {
		sender := services.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
		greetings = services.NewGreetingService(db, logger, reports, sender, clock)
	} else {
		logger.Info("Twilio not configured, birthday greetings disabled")
	}

	scheduler := services.NewScheduler(logger, credits, greetings)
	if err := scheduler.Register(cfg.SweepSchedule, cfg.GreetingSchedule); err != nil {
		return err
	}
	scheduler.Start()

	r := routes.SetupRouter(routes.Deps{
		Config:   cfg,
		Logger:   logger,
		Clock:    clock,
		Auth:     auth,
		Tokens:   tokens,
		Clients:  services.NewClientService(db, logger, clock),
		Rooms:    services.NewRoomService(db, logger),
		Bookings: bookings,
		Credits:  credits,
		Reports:  reports,
	})
	printRoutes(logger, r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(sctx)
	return srv.Shutdown(sctx)
}

func printRoutes(logger *logrus.Logger, r *gin.Engine) {
	for _, route := range r.Routes() {
		logger.Debugf("%-6s %s", route.Method, route.Path)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	if err := config.Migrate(db); err != nil {
		return err
	}
	ctx := cmd.Context()

	created := 0
	for _, room := range models.DefaultRooms() {
		var n int64
		if err := db.WithContext(ctx).Model(&models.Room{}).Where("number = ?", room.Number).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if err := db.WithContext(ctx).Create(&room).Error; err != nil {
			return fmt.Errorf("seed room %s: %w", room.Number, err)
		}
		created++
	}
	logger.WithField("created", created).Info("Rooms seeded")

	email, _ := cmd.Flags().GetString("admin-email")
	password, _ := cmd.Flags().GetString("admin-password")
	name, _ := cmd.Flags().GetString("admin-name")
	if email == "" {
		return nil
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		logger.WithField("email", email).Info("Admin user already exists")
		return nil
	}
	tokens := services.NewTokenService(db, logger, services.TokenConfig{Secret: cfg.JWTSecret}, utils.SystemClock)
	user, err := tokens.CreateUser(ctx, name, email, password, models.RoleAdmin)
	if err != nil {
		return err
	}
	logger.WithField("user_id", user.ID).Info("Admin user created")
	return nil
}
