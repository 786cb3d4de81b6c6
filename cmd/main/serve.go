package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"lod-engine/src/config"
	datasource "lod-engine/src/data_source"
	"lod-engine/src/engine"
	pb "lod-engine/src/grpc_control"
	"lod-engine/src/interfaces"
	"lod-engine/src/loader"
	"lod-engine/src/logger"
	"lod-engine/src/metrics"
	"lod-engine/src/scheduler"
	"lod-engine/src/server"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

const defaultGrpcPort = 50051

// -----------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with its HTTP, WebSocket and gRPC front ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

// -----------------------------------------------------------------------------

func serve() error {
	cfg, appLogger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := setupDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	sink := engine.NewChannelSink(cfg.Engine.EventBuffer, m, logger.NewLogger(cfg, "EventSink"))
	eng, err := setupEngine(cfg, db, sink, m)
	if err != nil {
		return err
	}
	loadStored(cfg, eng, db, appLogger)

	multiSource := datasource.NewMultiSourceManager([]interfaces.IBarSource{
		datasource.NewStorageSource(db),
		datasource.NewSyntheticSource(cfg.Series, db, logger.NewLogger(cfg, "SyntheticSource")),
	}, logger.NewLogger(cfg, "MultiSourceManager"))

	srv := server.NewAPIServer(cfg.MConfig, eng, m, logger.NewLogger(cfg, "APIServer"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}

	// Data windows requested by the engine
	wl := loader.NewWindowLoader(cfg.Loader, multiSource, eng, m, logger.NewLogger(cfg, "WindowLoader"))
	if err := wl.Start(ctx, sink.Requests, wg); err != nil {
		return err
	}
	go srv.ForwardDiagnostics(ctx, sink.Diagnostics)

	sched := scheduler.NewScheduler(ctx, eng, multiSource, srv, cfg.Series, logger.NewLogger(cfg, "Scheduler"))
	if err := sched.RegisterAll(cfg.Scheduler.TailCron, cfg.Scheduler.StatsCron); err != nil {
		return err
	}
	sched.Start()

	grpcServer, err := startGrpc(cfg, eng, multiSource, appLogger)
	if err != nil {
		sched.Stop()
		return err
	}

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down...")
	cancel()
	sched.Stop()
	grpcServer.GracefulStop()
	if err := srv.Stop(); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	wg.Wait()
	return nil
}

// -----------------------------------------------------------------------------

// startGrpc serves the control service in the background
func startGrpc(cfg *config.Config, eng *engine.Engine, ds *datasource.MultiSourceManager, appLogger *logger.Logger) (*grpc.Server, error) {
	port := cfg.GrpcPort
	if port == 0 {
		port = defaultGrpcPort
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.GrpcHost, port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	grpcServer := grpc.NewServer()
	pb.RegisterControlServer(grpcServer, pb.NewControlService(eng, ds, logger.NewLogger(cfg, "ControlService")))

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server stopped: %v", err)
		}
	}()
	return grpcServer, nil
}
