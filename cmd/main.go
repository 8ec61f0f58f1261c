package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/patient-transport/internal/config"
	"github.com/Leganyst/patient-transport/internal/db"
	"github.com/Leganyst/patient-transport/internal/events"
	"github.com/Leganyst/patient-transport/internal/httpapi"
	"github.com/Leganyst/patient-transport/internal/logging"
	"github.com/Leganyst/patient-transport/internal/metrics"
	"github.com/Leganyst/patient-transport/internal/model"
	"github.com/Leganyst/patient-transport/internal/repository"
	"github.com/Leganyst/patient-transport/internal/scheduling"
	"github.com/Leganyst/patient-transport/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "transport-core",
		Short: "Patient transport scheduling service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(callCmd("stats", "Print dashboard statistics", "GetStatistics"))
	rootCmd.AddCommand(callCmd("reminders", "Print the reminder digest", "GetReminderDigest"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC server and the admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := config.LoadDBConfig()
			if err != nil {
				return fmt.Errorf("load db config: %w", err)
			}
			gormDB, err := db.Open(dbCfg)
			if err != nil {
				return fmt.Errorf("init db: %w", err)
			}
			if sqlDB, err := gormDB.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := model.AutoMigrate(gormDB); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			fmt.Println("schema is up to date")
			return nil
		},
	}
}

// callCmd runs one read-only RPC against a running server and prints the JSON response.
func callCmd(use, short, method string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out, err := service.NewClient(conn).Call(ctx, method, map[string]any{})
			if err != nil {
				if details := service.ErrorDetails(err); details != nil {
					return fmt.Errorf("%s: %v", method, details["message"])
				}
				return fmt.Errorf("%s: %w", method, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().String("addr", "localhost:50051", "gRPC address of the running server")
	cmd.Flags().Duration("timeout", 10*time.Second, "Request timeout")
	return cmd
}

func runServer(cfg *config.Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	gormDB, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewDBStatsCollector(sqlDB, cfg.DB.Name))

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.RedisAddr != "" {
		rdb := events.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, cfg.RedisStream)
		log.Info().Str("addr", cfg.RedisAddr).Str("stream", cfg.RedisStream).Msg("publishing appointment events to redis")
	}

	sched := scheduling.NewScheduler(
		repository.NewGormStore(gormDB),
		cfg.Policy,
		scheduling.WithLogger(log),
		scheduling.WithMetrics(metrics.NewSchedulingMetrics(reg)),
		scheduling.WithPublisher(publisher),
	)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(service.UnaryLogger(log)))
	service.RegisterSchedulingServer(grpcServer, service.NewSchedulingService(sched))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus(service.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	adminServer := &http.Server{
		Addr: cfg.AdminAddr,
		Handler: httpapi.New(httpapi.Config{
			Reports:  sched,
			Gatherer: reg,
			Ping:     sqlDB.PingContext,
			Log:      log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin HTTP server listening")
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin serve: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed, shutting down")
		shutdown(log, grpcServer, healthSrv, adminServer)
		return err
	}

	shutdown(log, grpcServer, healthSrv, adminServer)
	return nil
}

func shutdown(log zerolog.Logger, grpcServer *grpc.Server, healthSrv *health.Server, adminServer *http.Server) {
	healthSrv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("admin server shutdown")
	}
	grpcServer.GracefulStop()
}
