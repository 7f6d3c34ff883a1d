package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "openrouter",
			Providers: map[string]config.ProviderConfig{
				"openrouter": {Model: "deepseek/deepseek-chat-v3-0324", Models: []string{"google/gemini-2.5-flash", "deepseek/deepseek-chat-v3-0324"}},
				"openai":     {Model: "gpt-4o-mini"},
			},
		},
	}
}

func TestEinoFactory_UnknownProvider(t *testing.T) {
	t.Parallel()

	f := NewEinoFactory(testConfig())
	_, err := f.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestEinoFactory_ModelsAndProviders(t *testing.T) {
	t.Parallel()

	f := NewEinoFactory(testConfig())
	assert.Equal(t, []string{"openai", "openrouter"}, f.Providers())

	models, err := f.Models("")
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek/deepseek-chat-v3-0324", "google/gemini-2.5-flash"}, models)
	assert.Equal(t, "gpt-4o-mini", f.DefaultModel("openai"))

	_, err = f.Models("missing")
	require.Error(t, err)
}
