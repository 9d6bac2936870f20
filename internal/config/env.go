package config

import "strings"

// ApplyEnv overrides endpoint settings from the environment.
// getenv is injectable so tests do not touch the process environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		return
	}
	override := func(target *string, key string) {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			*target = value
		}
	}
	override(&cfg.CoreAPI.URL, "FLLM_CORE_API_URL")
	override(&cfg.ManagementAPI.URL, "FLLM_MANAGEMENT_API_URL")
	override(&cfg.CoreAPI.InstanceID, "FLLM_INSTANCE_ID")
	override(&cfg.ManagementAPI.InstanceID, "FLLM_INSTANCE_ID")
	override(&cfg.CoreAPI.Agent, "FLLM_AGENT")
	override(&cfg.LLM.Endpoint, "AZURE_OPENAI_ENDPOINT")
	override(&cfg.LLM.Deployment, "AZURE_OPENAI_DEPLOYMENT")
}
