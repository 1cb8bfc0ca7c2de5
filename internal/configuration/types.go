// Package configuration holds the typed configuration consumed by the
// allocator and its collaborators, loaded via Viper at startup.
package configuration

import "time"

// ApplicationConfiguration identifies this allocator instance to the RM
// and driver.
type ApplicationConfiguration struct {
	AppId     string `validate:"required"`
	DriverURL string `validate:"required"`
}

// KubernetesConfiguration configures how the allocator builds its
// client-go client: in-cluster via the mounted service account, or from
// a kubeconfig on disk when run standalone for development.
type KubernetesConfiguration struct {
	InCluster bool
}

// DriverConfiguration configures the gRPC connection the allocator
// dials to reach the driver's removeExecutor/retrieveLastAllocatedExecutorId
// RPCs.
type DriverConfiguration struct {
	Address string `validate:"required"`
}

// WorkerConfiguration configures the local worker process the launcher
// starts for each container.
type WorkerConfiguration struct {
	BinaryPath string `validate:"required"`
}

// ResourceConfiguration carries the §4.1 ResourceSpec inputs.
type ResourceConfiguration struct {
	ExecutorMemoryMB             int64 `validate:"gt=0"`
	ExecutorMemoryOverheadMB     int64 `validate:"gte=0"`
	ExtraInterpreterWorkerMemory int64 `validate:"gte=0"`
	ExecutorCores                int32 `validate:"gt=0"`
	OverheadFactor               float64
	IsInterpreterApp             bool
}

// LauncherConfiguration configures the ContainerLauncher worker pool (C11).
type LauncherConfiguration struct {
	MaxThreads int `validate:"gt=0"`
}

// RequestConfiguration configures request-submission behaviour.
type RequestConfiguration struct {
	NodeLabelExpression string
	RequestPriority     int32
}

// InitialState carries the starting executor target and the executor id
// seed used when the driver's last-allocated-id RPC fails at
// construction.
type InitialState struct {
	InitialExecutorCount    int `validate:"gte=0"`
	LastAllocatedExecutorId int // fallback used if the driver RPC fails
}

// TaskConfiguration configures the background reconciliation cadence the
// cmd entrypoint drives the allocator with.
type TaskConfiguration struct {
	AllocateInterval time.Duration `validate:"gt=0"`
}

// FailureTrackerConfiguration configures the C3 sliding window.
type FailureTrackerConfiguration struct {
	Window time.Duration
}

// BlacklistConfiguration configures the C4 allocation-failure policy.
type BlacklistConfiguration struct {
	FailuresToBlacklist int
}

// RackResolverConfiguration configures the C12 rack-resolution cache.
type RackResolverConfiguration struct {
	CacheSize int
}

// AllocatorConfiguration is the top-level configuration object unmarshalled
// from config/executor-allocator/config.yaml.
type AllocatorConfiguration struct {
	MetricsPort    uint16
	Application    ApplicationConfiguration
	Resource       ResourceConfiguration
	Launcher       LauncherConfiguration
	Request        RequestConfiguration
	Initial        InitialState
	Task           TaskConfiguration
	FailureTracker FailureTrackerConfiguration
	Blacklist      BlacklistConfiguration
	RackResolver   RackResolverConfiguration
	Kubernetes     KubernetesConfiguration
	Driver         DriverConfiguration
	Worker         WorkerConfiguration
}
