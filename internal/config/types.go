package config

// Config is the root of .fllm/config.yml.
type Config struct {
	Version       int                 `yaml:"version"`
	CoreAPI       CoreAPIConfig       `yaml:"core_api"`
	ManagementAPI ManagementAPIConfig `yaml:"management_api"`
	Auth          AuthConfig          `yaml:"auth"`
	LLM           LLMConfig           `yaml:"llm"`
	Harness       HarnessConfig       `yaml:"harness"`
	Optimizer     OptimizerConfig     `yaml:"optimizer"`
	Perplexity    PerplexityConfig    `yaml:"perplexity"`
	Search        SearchConfig        `yaml:"search"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Publish       PublishConfig       `yaml:"publish"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// CoreAPIConfig points at the FoundationaLLM Core API.
type CoreAPIConfig struct {
	URL               string  `yaml:"url"`
	InstanceID        string  `yaml:"instance_id"`
	Agent             string  `yaml:"agent"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

// ManagementAPIConfig points at the FoundationaLLM Management API.
type ManagementAPIConfig struct {
	URL            string `yaml:"url"`
	InstanceID     string `yaml:"instance_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AuthConfig selects how bearer tokens are obtained.
type AuthConfig struct {
	Mode                 string `yaml:"mode"`
	TokenEnv             string `yaml:"token_env"`
	Scope                string `yaml:"scope"`
	RefreshMarginSeconds int    `yaml:"refresh_margin_seconds"`
}

// LLMConfig configures the chat model used by the refiner, judge and generator.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Endpoint    string  `yaml:"endpoint"`
	Deployment  string  `yaml:"deployment"`
	APIVersion  string  `yaml:"api_version"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
}

// HarnessConfig holds test harness defaults.
type HarnessConfig struct {
	SuitesDir      string `yaml:"suites_dir"`
	OutputDir      string `yaml:"output_dir"`
	Workers        int    `yaml:"workers"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	ValidationMode string `yaml:"validation_mode"`
	CreateSessions bool   `yaml:"create_sessions"`
}

// OptimizerConfig holds prompt optimization defaults.
type OptimizerConfig struct {
	MaxIterations  int     `yaml:"max_iterations"`
	TargetPassRate float64 `yaml:"target_pass_rate"`
	HistoryDir     string  `yaml:"history_dir"`
	HistoryDB      string  `yaml:"history_db"`
	MaxExamples    int     `yaml:"max_examples"`
}

// PerplexityConfig configures the Perplexity MCP server.
type PerplexityConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
}

// SearchConfig configures the Azure AI Search plugin.
type SearchConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Index      string `yaml:"index"`
	APIKeyEnv  string `yaml:"api_key_env"`
	APIVersion string `yaml:"api_version"`
	Top        int    `yaml:"top"`
}

// SessionsConfig configures the Azure Dynamic Sessions plugin.
type SessionsConfig struct {
	PoolEndpoint string `yaml:"pool_endpoint"`
	APIVersion   string `yaml:"api_version"`
}

// PublishConfig configures artifact publishing to Azure Blob Storage.
type PublishConfig struct {
	AccountURL string `yaml:"account_url"`
	Container  string `yaml:"container"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Validation modes accepted by suites and the harness.
const (
	ModeRule   = "rule"
	ModeLLM    = "llm"
	ModeHybrid = "hybrid"
)

// Auth modes.
const (
	AuthStatic = "static"
	AuthAzure  = "azure"
)

// LLM providers.
const (
	ProviderAzureOpenAI = "azure_openai"
	ProviderOpenAI      = "openai"
)

// IsValidationMode reports whether mode is one of rule, llm or hybrid.
func IsValidationMode(mode string) bool {
	switch mode {
	case ModeRule, ModeLLM, ModeHybrid:
		return true
	default:
		return false
	}
}
