package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/G-Research/executor-allocator/internal/allocator"
	"github.com/G-Research/executor-allocator/internal/blacklist"
	"github.com/G-Research/executor-allocator/internal/common"
	"github.com/G-Research/executor-allocator/internal/configuration"
	"github.com/G-Research/executor-allocator/internal/driver"
	"github.com/G-Research/executor-allocator/internal/failuretracker"
	"github.com/G-Research/executor-allocator/internal/launcher"
	"github.com/G-Research/executor-allocator/internal/metrics"
	"github.com/G-Research/executor-allocator/internal/rack"
	"github.com/G-Research/executor-allocator/internal/requeststore"
	"github.com/G-Research/executor-allocator/internal/task"
)

func main() {
	common.ConfigureLogging()

	var config configuration.AllocatorConfiguration
	common.LoadConfig(&config, "./config/executor-allocator")

	if err := configuration.Validate(config); err != nil {
		log.Errorf("invalid configuration: %s", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	kubernetesClient, err := common.CreateKubernetesClient(config.Kubernetes.InCluster)
	if err != nil {
		log.Errorf("failed to build kubernetes client: %s", err)
		os.Exit(1)
	}

	conn, err := grpc.Dial(config.Driver.Address,
		grpc.WithInsecure(),
		grpc.WithChainUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
		grpc.WithChainStreamInterceptor(grpc_prometheus.StreamClientInterceptor))
	if err != nil {
		log.Errorf("failed to dial driver at %s: %s", config.Driver.Address, err)
		os.Exit(1)
	}

	requestStore := requeststore.NewKubernetesStore(kubernetesClient, config.Application.AppId)

	rackResolver, err := rack.NewCachedResolver(rack.NewKubernetesNodeResolver(kubernetesClient), config.RackResolver.CacheSize)
	if err != nil {
		log.Errorf("failed to build rack resolver: %s", err)
		os.Exit(1)
	}

	reg := prometheus.DefaultRegisterer

	deps := allocator.Dependencies{
		RequestStore: requestStore,
		Launcher:     launcher.ExecLauncher{Command: launcher.DefaultCommand(config.Worker.BinaryPath)},
		RackResolver: rackResolver,
		DriverClient: driver.NewGrpcClient(conn),
		Failures:     failuretracker.New(config.FailureTracker.Window),
		Blacklist:    blacklist.NewCountingTracker(config.Blacklist.FailuresToBlacklist),
		Metrics:      metrics.New(reg),
	}
	a := allocator.New(ctx, config, deps)

	tasks := task.NewManager(metrics.MetricPrefix, reg)
	tasks.Register(func() {
		if err := a.Allocate(ctx); err != nil {
			log.Warnf("reconciliation step failed: %s", err)
		}
	}, config.Task.AllocateInterval, "reconcile")

	metricsServer := &http.Server{
		Addr:    ":" + strconv.Itoa(int(config.MetricsPort)),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server stopped: %s", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Infof("shutdown signal received, draining")
	cancel()
	if tasks.StopAll(10 * time.Second) {
		log.Warnf("background task shutdown timed out")
	}
	a.Stop()
	requestStore.Stop()
	_ = metricsServer.Close()
	_ = conn.Close()
	log.Infof("shutdown complete")
}
