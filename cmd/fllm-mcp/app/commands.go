// Package app provides the fllm-mcp command tree. Each subcommand serves one
// MCP server over stdio or streamable HTTP.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	fllmapp "github.com/foundationallm/foundationallm-sub000/internal/app"
	"github.com/foundationallm/foundationallm-sub000/internal/cli"
	"github.com/foundationallm/foundationallm-sub000/internal/crawler"
	"github.com/foundationallm/foundationallm-sub000/internal/logging"
	"github.com/foundationallm/foundationallm-sub000/internal/mcpserver"
	"github.com/foundationallm/foundationallm-sub000/internal/metrics"
	"github.com/foundationallm/foundationallm-sub000/internal/plugins"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

// EnvPrefix is prepended to flag names for environment overrides,
// e.g. FLLM_MCP_TRANSPORT.
const EnvPrefix = "FLLM_MCP"

// DefaultAddr is the HTTP listen address.
const DefaultAddr = "127.0.0.1:8765"

// newViper returns a viper instance reading FLLM_MCP_* variables.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// NewRootCmd builds the fllm-mcp root command.
func NewRootCmd() *cobra.Command {
	v := newViper()
	rootCmd := &cobra.Command{
		Use:               "fllm-mcp",
		DisableAutoGenTag: true,
		Short:             "Model Context Protocol servers for FoundationaLLM",
		Long: `fllm-mcp exposes FoundationaLLM and research tools to MCP clients.

  agent       agents, prompts, test suites, knowledge search and code sessions
  perplexity  web search through the Perplexity API
  crawler     page fetching and same-site crawling

Flags can also be set with FLLM_MCP_<FLAG>, e.g. FLLM_MCP_TRANSPORT=http.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("transport", string(mcpserver.TransportStdio), "Transport: stdio|http")
	flags.String("addr", DefaultAddr, "Listen address for the http transport")
	flags.String("config", "", "Path to .fllm/config.yml (default: search upward from the working directory)")
	flags.Bool("debug", false, "Enable debug logging")
	for _, name := range []string{"transport", "addr", "config", "debug"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", name, err))
		}
	}

	rootCmd.AddCommand(newAgentCmd(v))
	rootCmd.AddCommand(newPerplexityCmd(v))
	rootCmd.AddCommand(newCrawlerCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fllm-mcp %s\n", cli.Version)
		},
	}
}

func newAgentCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve the FoundationaLLM agent tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			env, err := fllmapp.Load(v.GetString("config"), logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tools, err := agentTools(env, v.GetString("mode"))
			if err != nil {
				return err
			}
			return serve(cmd, v, mcpserver.NewAgentServer(tools, cli.Version), env.Metrics, logger)
		},
	}
	cmd.Flags().String("mode", "", "Default validation mode for run_test_suite (default: harness.validation_mode)")
	if err := v.BindPFlag("mode", cmd.Flags().Lookup("mode")); err != nil {
		panic(fmt.Sprintf("bind mode flag: %v", err))
	}
	return cmd
}

// agentTools wires the agent server to the configured clients. Search and
// code sessions stay unset when their endpoints are not configured.
func agentTools(env *fllmapp.Env, mode string) (*mcpserver.AgentTools, error) {
	defaultMode := validate.Mode(env.Config.Harness.ValidationMode)
	if mode != "" {
		parsed, err := validate.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		defaultMode = parsed
	}
	core, err := env.Core()
	if err != nil {
		return nil, fmt.Errorf("core api: %w", err)
	}
	management, err := env.Management()
	if err != nil {
		return nil, fmt.Errorf("management api: %w", err)
	}
	validator, err := env.Validator(defaultMode)
	if err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	tools := &mcpserver.AgentTools{
		Core:         core,
		Management:   management,
		DefaultAgent: env.Config.CoreAPI.Agent,
		SuitesDir:    env.SuitesDir(),
		Workers:      env.Config.Harness.Workers,
		Mode:         defaultMode,
		Validator:    validator,
		CaseTimeout:  time.Duration(env.Config.Harness.TimeoutSeconds) * time.Second,
		Logger:       env.Logger,
	}
	search, err := env.Search()
	if err != nil {
		return nil, err
	}
	if search != nil {
		tools.Search = search
		if chat, err := env.Chat(); err == nil {
			tools.Knowledge = &plugins.KnowledgeWorkflow{Retriever: search, Chat: chat, Top: env.Config.Search.Top}
		} else {
			env.Logger.Debugw("ask_knowledge disabled", "error", err)
		}
	}
	sessions, err := env.CodeSessions()
	if err != nil {
		return nil, err
	}
	if sessions != nil {
		tools.Code = sessions
	}
	return tools, nil
}

func newPerplexityCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "perplexity",
		Short: "Serve web search through the Perplexity API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			env, err := fllmapp.Load(v.GetString("config"), logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client, err := env.Perplexity()
			if err != nil {
				return err
			}
			return serve(cmd, v, mcpserver.NewPerplexityServer(client, cli.Version), env.Metrics, logger)
		},
	}
}

func newCrawlerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawler",
		Short: "Serve page fetching and crawling tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			fetcher := crawler.NewFetcher(v.GetDuration("timeout"), v.GetFloat64("rps"))
			return serve(cmd, v, mcpserver.NewCrawlerServer(fetcher, cli.Version), metrics.New(), logger)
		},
	}
	cmd.Flags().Duration("timeout", 30*time.Second, "Per request timeout")
	cmd.Flags().Float64("rps", 2, "Requests per second across the crawl")
	for _, name := range []string{"timeout", "rps"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", name, err))
		}
	}
	return cmd
}

func newLogger(v *viper.Viper) (*zap.SugaredLogger, error) {
	logger, err := logging.New(logging.Options{Debug: v.GetBool("debug")})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return logger, nil
}

func serve(cmd *cobra.Command, v *viper.Viper, s *server.MCPServer, registry *metrics.Registry, logger *zap.SugaredLogger) error {
	transport, err := mcpserver.ParseTransport(v.GetString("transport"))
	if err != nil {
		return err
	}
	logger.Infow("starting mcp server", "server", cmd.Name(), "transport", transport, "addr", v.GetString("addr"))
	return mcpserver.Serve(cmd.Context(), s, mcpserver.ServeOptions{
		Transport: transport,
		Addr:      v.GetString("addr"),
		Metrics:   registry,
		Logger:    logger,
		Stdin:     cmd.InOrStdin(),
		Stdout:    cmd.OutOrStdout(),
	})
}
