package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "NYCU_PORT"
	EnvLogLevel        = "NYCU_LOG_LEVEL"
	EnvShutdownTimeout = "NYCU_SHUTDOWN_TIMEOUT"

	// Upstream catalog API
	EnvUpstreamEndpoint = "NYCU_UPSTREAM_ENDPOINT"
	EnvUpstreamTimeout  = "NYCU_UPSTREAM_TIMEOUT"
	EnvUpstreamThrottle = "NYCU_UPSTREAM_THROTTLE"

	// Key-value store
	EnvStoreBackend  = "NYCU_STORE_BACKEND"
	EnvRedisAddr     = "NYCU_REDIS_ADDR"
	EnvRedisPassword = "NYCU_REDIS_PASSWORD"
	EnvRedisDB       = "NYCU_REDIS_DB"
	EnvDataDir       = "NYCU_DATA_DIR"

	// API
	EnvSuggestionLimit = "NYCU_SUGGESTION_LIMIT"
	EnvAPIRateLimit    = "NYCU_API_RATE_LIMIT"
	EnvAPIRateBurst    = "NYCU_API_RATE_BURST"

	// Background Tasks
	EnvWarmupPeriods             = "NYCU_WARMUP_PERIODS"
	EnvDepartmentRefreshInterval = "NYCU_DEPARTMENT_REFRESH_INTERVAL"
	EnvWarmupGracePeriod         = "NYCU_WARMUP_GRACE_PERIOD"
	EnvWaitForWarmup             = "NYCU_WAIT_FOR_WARMUP"

	// Metrics Auth Feature
	EnvMetricsUsername = "NYCU_METRICS_USERNAME"
	EnvMetricsPassword = "NYCU_METRICS_PASSWORD"

	// Better Stack Feature
	EnvBetterStackToken    = "NYCU_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "NYCU_BETTERSTACK_ENDPOINT"

	// Sentry Feature
	EnvSentryToken       = "NYCU_SENTRY_TOKEN"
	EnvSentryHost        = "NYCU_SENTRY_HOST"
	EnvSentryEnvironment = "NYCU_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "NYCU_SENTRY_SAMPLE_RATE"

	// R2 Snapshot Feature
	EnvR2Endpoint        = "NYCU_R2_ENDPOINT"
	EnvR2AccessKeyID     = "NYCU_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "NYCU_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "NYCU_R2_BUCKET_NAME"
	EnvR2SnapshotKey     = "NYCU_R2_SNAPSHOT_KEY"
	EnvSnapshotInterval  = "NYCU_SNAPSHOT_INTERVAL"
)
