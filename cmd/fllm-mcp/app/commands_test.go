package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fllmapp "github.com/foundationallm/foundationallm-sub000/internal/app"
	"github.com/foundationallm/foundationallm-sub000/internal/cli"
	"github.com/foundationallm/foundationallm-sub000/internal/config"
	"github.com/foundationallm/foundationallm-sub000/internal/validate"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootHelpListsServers(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"agent", "perplexity", "crawler", "--transport", "FLLM_MCP_"} {
		assert.Contains(t, out, name)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fllm-mcp "+cli.Version+"\n", out)
}

func TestUnknownTransport(t *testing.T) {
	t.Parallel()
	_, err := execute(t, "crawler", "--transport", "carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}

func TestTransportFromEnvironment(t *testing.T) {
	t.Setenv("FLLM_MCP_TRANSPORT", "smoke-signals")
	_, err := execute(t, "crawler")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smoke-signals")
}

func TestAgentToolsOptionalPlugins(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	_, err := config.Scaffold(root)
	require.NoError(t, err)
	env, err := fllmapp.Load(config.ConfigPath(root), nil)
	require.NoError(t, err)

	tools, err := agentTools(env, "")
	require.NoError(t, err)
	assert.Nil(t, tools.Search, "search is not configured")
	assert.Nil(t, tools.Code, "code sessions are not configured")
	assert.Equal(t, "default-agent", tools.DefaultAgent)
	assert.Equal(t, validate.ModeRule, tools.Mode)
	assert.Equal(t, env.SuitesDir(), tools.SuitesDir)

	_, err = agentTools(env, "psychic")
	require.Error(t, err)
}
