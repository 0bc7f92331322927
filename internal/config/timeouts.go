package config

import "time"

// HTTP server timeouts
const (
	// HTTPRead is the server read timeout. Request bodies are small JSON documents.
	HTTPRead = 10 * time.Second

	// HTTPWrite is the server write timeout. A cold course query waits for
	// the catalog API, which can take tens of seconds.
	HTTPWrite = 90 * time.Second

	// HTTPIdle is the idle timeout for keep-alive connections.
	HTTPIdle = 120 * time.Second

	// ReadinessCheckTimeout bounds the store ping in /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Upstream pacing
const (
	// UpstreamThrottle is the fixed pause after each department hierarchy
	// request. The crawl issues dozens of calls per period.
	UpstreamThrottle = 500 * time.Millisecond
)

// Store timeouts
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour

	// StorePing bounds the startup connectivity check of a remote store.
	StorePing = 5 * time.Second
)

// Background jobs
const (
	// WarmupGracePeriod is how long /readyz waits for the first department
	// warmup before reporting ready anyway.
	WarmupGracePeriod = 10 * time.Minute

	// DepartmentWarmup bounds a single department crawl for one period.
	DepartmentWarmup = 30 * time.Minute

	// SnapshotTransfer bounds one snapshot upload or download.
	SnapshotTransfer = 5 * time.Minute

	// NameIndexUpdate bounds a detached name index write after a course query.
	NameIndexUpdate = 30 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the default timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
