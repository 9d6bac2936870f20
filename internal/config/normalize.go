package config

import "strings"

// Defaults applied by Normalize.
const (
	DefaultWorkers         = 4
	DefaultTimeoutSeconds  = 120
	DefaultMaxIterations   = 5
	DefaultTargetPassRate  = 0.9
	DefaultMaxRetries      = 3
	DefaultRefreshMargin   = 300
	DefaultTokenEnv        = "FLLM_ACCESS_TOKEN"
	DefaultLLMKeyEnv       = "AZURE_OPENAI_API_KEY"
	DefaultAzureAPIVersion = "2024-06-01"
	DefaultPerplexityModel = "sonar"
	DefaultPerplexityKey   = "PERPLEXITY_API_KEY"
	DefaultPerplexityURL   = "https://api.perplexity.ai"
	DefaultSearchVersion   = "2023-11-01"
	DefaultSearchKeyEnv    = "AZURE_SEARCH_API_KEY"
	DefaultSearchTop       = 5
	DefaultSessionsVersion = "2024-02-02-preview"
	DefaultServiceName     = "fllm"
	DefaultMaxExamples     = 8
)

// Normalize trims string fields and fills defaults in place.
func Normalize(cfg *Config) {
	cfg.CoreAPI.URL = strings.TrimRight(strings.TrimSpace(cfg.CoreAPI.URL), "/")
	cfg.CoreAPI.InstanceID = strings.TrimSpace(cfg.CoreAPI.InstanceID)
	cfg.CoreAPI.Agent = strings.TrimSpace(cfg.CoreAPI.Agent)
	if cfg.CoreAPI.TimeoutSeconds == 0 {
		cfg.CoreAPI.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.CoreAPI.MaxRetries == 0 {
		cfg.CoreAPI.MaxRetries = DefaultMaxRetries
	}

	cfg.ManagementAPI.URL = strings.TrimRight(strings.TrimSpace(cfg.ManagementAPI.URL), "/")
	cfg.ManagementAPI.InstanceID = strings.TrimSpace(cfg.ManagementAPI.InstanceID)
	if cfg.ManagementAPI.InstanceID == "" {
		cfg.ManagementAPI.InstanceID = cfg.CoreAPI.InstanceID
	}
	if cfg.ManagementAPI.TimeoutSeconds == 0 {
		cfg.ManagementAPI.TimeoutSeconds = DefaultTimeoutSeconds
	}

	cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthStatic
	}
	cfg.Auth.TokenEnv = strings.TrimSpace(cfg.Auth.TokenEnv)
	if cfg.Auth.TokenEnv == "" {
		cfg.Auth.TokenEnv = DefaultTokenEnv
	}
	cfg.Auth.Scope = strings.TrimSpace(cfg.Auth.Scope)
	if cfg.Auth.RefreshMarginSeconds == 0 {
		cfg.Auth.RefreshMarginSeconds = DefaultRefreshMargin
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderAzureOpenAI
	}
	cfg.LLM.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.LLM.Endpoint), "/")
	cfg.LLM.Deployment = strings.TrimSpace(cfg.LLM.Deployment)
	cfg.LLM.APIVersion = strings.TrimSpace(cfg.LLM.APIVersion)
	if cfg.LLM.APIVersion == "" && cfg.LLM.Provider == ProviderAzureOpenAI {
		cfg.LLM.APIVersion = DefaultAzureAPIVersion
	}
	cfg.LLM.APIKeyEnv = strings.TrimSpace(cfg.LLM.APIKeyEnv)
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = DefaultLLMKeyEnv
	}

	cfg.Harness.SuitesDir = strings.TrimSpace(cfg.Harness.SuitesDir)
	if cfg.Harness.SuitesDir == "" {
		cfg.Harness.SuitesDir = DefaultSuitesDir
	}
	cfg.Harness.OutputDir = strings.TrimSpace(cfg.Harness.OutputDir)
	if cfg.Harness.OutputDir == "" {
		cfg.Harness.OutputDir = DefaultOutputDir
	}
	if cfg.Harness.Workers == 0 {
		cfg.Harness.Workers = DefaultWorkers
	}
	if cfg.Harness.TimeoutSeconds == 0 {
		cfg.Harness.TimeoutSeconds = DefaultTimeoutSeconds
	}
	cfg.Harness.ValidationMode = strings.ToLower(strings.TrimSpace(cfg.Harness.ValidationMode))
	if cfg.Harness.ValidationMode == "" {
		cfg.Harness.ValidationMode = ModeRule
	}

	if cfg.Optimizer.MaxIterations == 0 {
		cfg.Optimizer.MaxIterations = DefaultMaxIterations
	}
	if cfg.Optimizer.TargetPassRate == 0 {
		cfg.Optimizer.TargetPassRate = DefaultTargetPassRate
	}
	cfg.Optimizer.HistoryDir = strings.TrimSpace(cfg.Optimizer.HistoryDir)
	if cfg.Optimizer.HistoryDir == "" {
		cfg.Optimizer.HistoryDir = DefaultHistoryDir
	}
	cfg.Optimizer.HistoryDB = strings.TrimSpace(cfg.Optimizer.HistoryDB)
	if cfg.Optimizer.MaxExamples == 0 {
		cfg.Optimizer.MaxExamples = DefaultMaxExamples
	}

	if cfg.Perplexity.APIKeyEnv == "" {
		cfg.Perplexity.APIKeyEnv = DefaultPerplexityKey
	}
	if cfg.Perplexity.Model == "" {
		cfg.Perplexity.Model = DefaultPerplexityModel
	}
	if cfg.Perplexity.BaseURL == "" {
		cfg.Perplexity.BaseURL = DefaultPerplexityURL
	}
	cfg.Perplexity.BaseURL = strings.TrimRight(cfg.Perplexity.BaseURL, "/")

	cfg.Search.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Search.Endpoint), "/")
	if cfg.Search.APIVersion == "" {
		cfg.Search.APIVersion = DefaultSearchVersion
	}
	if cfg.Search.APIKeyEnv == "" {
		cfg.Search.APIKeyEnv = DefaultSearchKeyEnv
	}
	if cfg.Search.Top == 0 {
		cfg.Search.Top = DefaultSearchTop
	}

	cfg.Sessions.PoolEndpoint = strings.TrimRight(strings.TrimSpace(cfg.Sessions.PoolEndpoint), "/")
	if cfg.Sessions.APIVersion == "" {
		cfg.Sessions.APIVersion = DefaultSessionsVersion
	}

	cfg.Publish.AccountURL = strings.TrimRight(strings.TrimSpace(cfg.Publish.AccountURL), "/")
	cfg.Publish.Container = strings.TrimSpace(cfg.Publish.Container)

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}
