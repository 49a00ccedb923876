package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values.
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.useSystemPrompts", true)

	// AI Configuration - Optimize operation defaults
	v.SetDefault("ai.optimize.provider", "gemini")
	v.SetDefault("ai.optimize.model", "")
	v.SetDefault("ai.optimize.timeout", 90*time.Second) // Full-record rewrites are slow
	v.SetDefault("ai.optimize.apiKey", "")
	v.SetDefault("ai.optimize.maxRetries", 2)
	v.SetDefault("ai.optimize.temperature", 0.2)
	v.SetDefault("ai.optimize.useSystemPrompts", true)

	v.SetDefault("ai.optimize.circuitBreaker.enabled", true)
	v.SetDefault("ai.optimize.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.optimize.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.optimize.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.optimize.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.optimize.circuitBreaker.failureThreshold", 0.6)

	// Optimizer
	v.SetDefault("optimizer.retryBudget", 1)
	v.SetDefault("optimizer.attemptTimeout", 0)

	// Matching
	v.SetDefault("matching.synonymsFile", "")
	v.SetDefault("matching.nameHeuristic", true)

	// Storage
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "")

	// Sessions
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cleanupInterval", 5*time.Minute)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 180*time.Second) // optimize may wait on two oracle calls
	v.SetDefault("server.idleTimeout", 120*time.Second)

	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.caFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.clientAuthPolicy", "require")
	v.SetDefault("server.tls.autoReload.enabled", true)
	v.SetDefault("server.tls.autoReload.debounceDelay", time.Second)

	v.SetDefault("server.apiKeys", []string{})

	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 1024*1024) // 1MB

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "vocatio")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackSuccessRates", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackMatchScores", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackViolations", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackSessions", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
