// Package app builds the API clients, model and stores described by a
// loaded config. The CLI and the MCP command share it.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/auth"
	"github.com/foundationallm/foundationallm-sub000/internal/config"
	"github.com/foundationallm/foundationallm-sub000/internal/coreapi"
	"github.com/foundationallm/foundationallm-sub000/internal/duckdb"
	"github.com/foundationallm/foundationallm-sub000/internal/history"
	"github.com/foundationallm/foundationallm-sub000/internal/llm"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/metrics"
	"github.com/foundationallm/foundationallm-sub000/internal/mgmtapi"
	"github.com/foundationallm/foundationallm-sub000/internal/perplexity"
	"github.com/foundationallm/foundationallm-sub000/internal/plugins"
	"github.com/foundationallm/foundationallm-sub000/internal/transport"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// Env is a loaded config plus the process dependencies clients need.
type Env struct {
	Config  config.Config
	Root    string
	Logger  *zap.SugaredLogger
	Metrics *metrics.Registry
	Getenv  func(string) string

	tokens auth.TokenSource
}

// Load finds and loads the config. An empty path searches upward from the
// working directory.
func Load(configPath string, logger *zap.SugaredLogger) (*Env, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		found, err := config.FindConfigPath("")
		if err != nil {
			return nil, err
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, config.RepoRootFromConfigPath(path), logger), nil
}

// New wraps an already validated config.
func New(cfg config.Config, root string, logger *zap.SugaredLogger) *Env {
	return &Env{
		Config:  cfg,
		Root:    root,
		Logger:  logging.OrNop(logger),
		Metrics: metrics.New(),
		Getenv:  os.Getenv,
	}
}

// Path resolves a config-relative path against the repo root.
func (e *Env) Path(path string) string {
	return config.ResolvePath(e.Root, path)
}

// SuitesDir is the resolved harness.suites_dir.
func (e *Env) SuitesDir() string { return e.Path(e.Config.Harness.SuitesDir) }

// OutputDir is the resolved harness.output_dir.
func (e *Env) OutputDir() string { return e.Path(e.Config.Harness.OutputDir) }

// HistoryDir is the resolved optimizer.history_dir.
func (e *Env) HistoryDir() string { return e.Path(e.Config.Optimizer.HistoryDir) }

func (e *Env) tokenSource() (auth.TokenSource, error) {
	if e.tokens != nil {
		return e.tokens, nil
	}
	tokens, err := auth.NewSource(e.Config.Auth)
	if err != nil {
		return nil, err
	}
	if static, ok := tokens.(auth.StaticSource); ok {
		static.Getenv = e.Getenv
		tokens = static
	}
	e.tokens = tokens
	return tokens, nil
}

func (e *Env) rest(name, baseURL string, timeoutSeconds int, tokens auth.TokenSource, headers map[string]string) (*transport.Client, error) {
	return transport.New(transport.Options{
		Name:              name,
		BaseURL:           baseURL,
		Tokens:            tokens,
		Timeout:           time.Duration(timeoutSeconds) * time.Second,
		RequestsPerSecond: e.Config.CoreAPI.RequestsPerSecond,
		MaxRetries:        e.Config.CoreAPI.MaxRetries,
		Logger:            e.Logger,
		Observer:          e.Metrics,
		Headers:           headers,
	})
}

// Core builds the Core API client.
func (e *Env) Core() (*coreapi.Client, error) {
	tokens, err := e.tokenSource()
	if err != nil {
		return nil, err
	}
	rest, err := e.rest("core", e.Config.CoreAPI.URL, e.Config.CoreAPI.TimeoutSeconds, tokens, nil)
	if err != nil {
		return nil, fmt.Errorf("core api: %w", err)
	}
	return coreapi.New(rest, e.Config.CoreAPI.InstanceID)
}

// Management builds the Management API client.
func (e *Env) Management() (*mgmtapi.Client, error) {
	if e.Config.ManagementAPI.URL == "" {
		return nil, fmt.Errorf("management_api.url is not configured")
	}
	tokens, err := e.tokenSource()
	if err != nil {
		return nil, err
	}
	rest, err := e.rest("management", e.Config.ManagementAPI.URL, e.Config.ManagementAPI.TimeoutSeconds, tokens, nil)
	if err != nil {
		return nil, fmt.Errorf("management api: %w", err)
	}
	return mgmtapi.New(rest, e.Config.ManagementAPI.InstanceID)
}

// Chat builds the chat model used by the judge, refiner and generator.
func (e *Env) Chat() (*llm.OpenAIChat, error) {
	return llm.NewOpenAIChat(e.Config.LLM, llm.ChatOptions{Getenv: e.Getenv, Logger: e.Logger})
}

// Validator returns a validator for mode. The LLM judge is attached when
// mode needs it; a missing model key is an error only in that case.
func (e *Env) Validator(mode validate.Mode) (*validate.Validator, error) {
	v := &validate.Validator{DefaultMode: mode}
	chat, err := e.Chat()
	if err != nil {
		if mode == validate.ModeLLM || mode == validate.ModeHybrid {
			return nil, err
		}
		e.Logger.Debugw("llm judge unavailable", "error", err)
		return v, nil
	}
	v.Judge = &validate.LLMJudge{Chat: chat}
	return v, nil
}

// Perplexity builds the Perplexity client. The API key is sent as a bearer token.
func (e *Env) Perplexity() (*perplexity.Client, error) {
	cfg := e.Config.Perplexity
	rest, err := e.rest("perplexity", cfg.BaseURL, e.Config.CoreAPI.TimeoutSeconds, auth.StaticSource{EnvVar: cfg.APIKeyEnv, Getenv: e.Getenv}, nil)
	if err != nil {
		return nil, fmt.Errorf("perplexity: %w", err)
	}
	return perplexity.New(rest, cfg.Model)
}

// Search builds the Azure AI Search tool, or returns nil when search is not configured.
func (e *Env) Search() (*plugins.SearchTool, error) {
	cfg := e.Config.Search
	if cfg.Endpoint == "" {
		return nil, nil
	}
	key := strings.TrimSpace(e.Getenv(cfg.APIKeyEnv))
	if key == "" {
		return nil, fmt.Errorf("search: %s is empty", cfg.APIKeyEnv)
	}
	rest, err := e.rest("search", cfg.Endpoint, e.Config.CoreAPI.TimeoutSeconds, nil, plugins.SearchHeaders(key))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return plugins.NewSearchTool(rest, cfg.Index, cfg.APIVersion, cfg.Top)
}

// CodeSessions builds the Dynamic Sessions tool, or returns nil when no pool is configured.
func (e *Env) CodeSessions() (*plugins.CodeSessionTool, error) {
	cfg := e.Config.Sessions
	if cfg.PoolEndpoint == "" {
		return nil, nil
	}
	tokens, err := auth.NewAzureSource(plugins.SessionsScope, time.Duration(e.Config.Auth.RefreshMarginSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	rest, err := e.rest("sessions", cfg.PoolEndpoint, e.Config.CoreAPI.TimeoutSeconds, tokens, nil)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	return plugins.NewCodeSessionTool(rest, cfg.APIVersion)
}

// HistoryDB opens optimizer.history_db, or returns nil when it is unset.
func (e *Env) HistoryDB(ctx context.Context) (*duckdb.Store, error) {
	if e.Config.Optimizer.HistoryDB == "" {
		return nil, nil
	}
	return duckdb.Open(ctx, e.Path(e.Config.Optimizer.HistoryDB))
}

// History builds the optimizer recorder: files always, DuckDB when configured.
// The returned close function is never nil.
func (e *Env) History(ctx context.Context) (*history.Recorder, func() error, error) {
	recorder := &history.Recorder{
		Files:  history.NewFileStore(e.HistoryDir()),
		Logger: e.Logger,
	}
	store, err := e.HistoryDB(ctx)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	if store == nil {
		return recorder, func() error { return nil }, nil
	}
	recorder.Ingest = store
	return recorder, store.Close, nil
}
