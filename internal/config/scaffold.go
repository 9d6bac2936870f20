package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfig = `version: 1

core_api:
  url: "https://core-api.example.com"
  instance_id: "00000000-0000-0000-0000-000000000000"
  agent: "default-agent"
  timeout_seconds: 120
  requests_per_second: 2
  max_retries: 3

management_api:
  url: "https://management-api.example.com"

auth:
  # static reads a bearer token from token_env; azure uses DefaultAzureCredential.
  mode: static
  token_env: FLLM_ACCESS_TOKEN
  # scope: "api://FoundationaLLM-Core/.default"

llm:
  provider: azure_openai
  endpoint: "https://my-openai.openai.azure.com"
  deployment: "gpt-4o"
  api_key_env: AZURE_OPENAI_API_KEY
  temperature: 0

harness:
  suites_dir: suites
  output_dir: .fllm/results
  workers: 4
  validation_mode: rule
  create_sessions: true

optimizer:
  max_iterations: 5
  target_pass_rate: 0.9
  history_dir: .fllm/history
`

const defaultSuite = `Question,Filename,ExpectedAnswer,ValidationRules,ValidationMode
"What is the capital of France?",,Paris,"{""contains"":[""Paris""]}",rule
"Summarize the attached document in one sentence.",docs/sample.txt,,"{""min_length"":20,""max_length"":400}",rule
"Is 17 a prime number? Answer yes or no.",,yes,,hybrid
`

// Scaffold writes a starter config and sample suite under root.
// Existing files are never overwritten.
func Scaffold(root string) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	configPath := ConfigPath(root)
	suitePath := filepath.Join(root, DefaultSuitesDir, "sample.csv")
	for _, path := range []string{configPath, suitePath} {
		if info, err := os.Stat(path); err == nil {
			if info.IsDir() {
				return nil, fmt.Errorf("path %q is a directory", path)
			}
			return nil, fmt.Errorf("file already exists at %q", path)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(suitePath), 0o755); err != nil {
		return nil, fmt.Errorf("create suites dir: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}
	if err := os.WriteFile(suitePath, []byte(defaultSuite), 0o644); err != nil {
		return nil, fmt.Errorf("write sample suite: %w", err)
	}
	return []string{configPath, suitePath}, nil
}
