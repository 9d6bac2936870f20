package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Issue captures a validation problem with a config field.
type Issue struct {
	Field   string
	Message string
}

// ValidationError aggregates config validation issues.
type ValidationError struct {
	Issues []Issue
}

// Error renders validation errors as a multi-line string.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return "config validation failed"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

// issueCollector accumulates validation issues.
type issueCollector struct {
	issues []Issue
}

// add records a new validation issue.
func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

// result returns a ValidationError when issues are present.
func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}

// Validate checks a normalized config for correctness.
func Validate(cfg *Config) error {
	c := &issueCollector{}

	if cfg.Version == 0 {
		c.add("version", "is required")
	} else if cfg.Version != 1 {
		c.add("version", fmt.Sprintf("unsupported version %d", cfg.Version))
	}

	if cfg.CoreAPI.URL == "" {
		c.add("core_api.url", "is required")
	} else {
		validateURL(c, "core_api.url", cfg.CoreAPI.URL)
	}
	if cfg.CoreAPI.InstanceID == "" {
		c.add("core_api.instance_id", "is required")
	}
	if cfg.CoreAPI.TimeoutSeconds < 0 {
		c.add("core_api.timeout_seconds", "must be >= 0")
	}
	if cfg.CoreAPI.RequestsPerSecond < 0 {
		c.add("core_api.requests_per_second", "must be >= 0")
	}
	if cfg.CoreAPI.MaxRetries < 0 {
		c.add("core_api.max_retries", "must be >= 0")
	}
	if cfg.ManagementAPI.URL != "" {
		validateURL(c, "management_api.url", cfg.ManagementAPI.URL)
	}

	switch cfg.Auth.Mode {
	case AuthStatic:
	case AuthAzure:
		if cfg.Auth.Scope == "" {
			c.add("auth.scope", "is required when auth.mode is azure")
		}
	default:
		c.add("auth.mode", fmt.Sprintf("unsupported mode %q (expected static|azure)", cfg.Auth.Mode))
	}
	if cfg.Auth.RefreshMarginSeconds < 0 {
		c.add("auth.refresh_margin_seconds", "must be >= 0")
	}

	switch cfg.LLM.Provider {
	case ProviderAzureOpenAI, ProviderOpenAI:
	default:
		c.add("llm.provider", fmt.Sprintf("unsupported provider %q (expected azure_openai|openai)", cfg.LLM.Provider))
	}
	if cfg.LLM.Endpoint != "" {
		validateURL(c, "llm.endpoint", cfg.LLM.Endpoint)
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		c.add("llm.temperature", "must be between 0 and 2")
	}

	if cfg.Harness.Workers < 1 {
		c.add("harness.workers", "must be >= 1")
	}
	if cfg.Harness.TimeoutSeconds < 0 {
		c.add("harness.timeout_seconds", "must be >= 0")
	}
	if !IsValidationMode(cfg.Harness.ValidationMode) {
		c.add("harness.validation_mode", fmt.Sprintf("unsupported mode %q (expected rule|llm|hybrid)", cfg.Harness.ValidationMode))
	}

	if cfg.Optimizer.MaxIterations < 1 {
		c.add("optimizer.max_iterations", "must be >= 1")
	}
	if cfg.Optimizer.TargetPassRate <= 0 || cfg.Optimizer.TargetPassRate > 1 {
		c.add("optimizer.target_pass_rate", "must be in (0, 1]")
	}
	if cfg.Optimizer.MaxExamples < 0 {
		c.add("optimizer.max_examples", "must be >= 0")
	}

	if cfg.Search.Endpoint != "" {
		validateURL(c, "search.endpoint", cfg.Search.Endpoint)
		if cfg.Search.Index == "" {
			c.add("search.index", "is required when search.endpoint is set")
		}
	}
	if cfg.Sessions.PoolEndpoint != "" {
		validateURL(c, "sessions.pool_endpoint", cfg.Sessions.PoolEndpoint)
	}
	if cfg.Publish.AccountURL != "" {
		validateURL(c, "publish.account_url", cfg.Publish.AccountURL)
		if cfg.Publish.Container == "" {
			c.add("publish.container", "is required when publish.account_url is set")
		}
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		c.add("telemetry.endpoint", "is required when telemetry is enabled")
	}

	return c.result()
}

// validateURL requires an absolute http(s) URL.
func validateURL(c *issueCollector, field, raw string) {
	parsed, err := url.Parse(raw)
	if err != nil {
		c.add(field, fmt.Sprintf("invalid url: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		c.add(field, "must use http or https")
		return
	}
	if parsed.Host == "" {
		c.add(field, "must include a host")
	}
}
