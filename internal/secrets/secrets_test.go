package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.json")

	f, err := NewFile(path, "pass")
	require.NoError(t, err)

	_, ok, err := f.Get(ctx, "openai-api-key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Put(ctx, "OpenAI-API-Key", "sk-123"))
	v, ok, err := f.Get(ctx, "openai-api-key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-123", v)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-123")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	other, err := NewFile(path, "different")
	require.NoError(t, err)
	_, _, err = other.Get(ctx, "openai-api-key")
	assert.Error(t, err, "wrong passphrase must not decrypt")

	require.NoError(t, f.Delete(ctx, "openai-api-key"))
	_, ok, err = f.Get(ctx, "openai-api-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnvAndChain(t *testing.T) {
	ctx := context.Background()
	t.Setenv("SPENDBOOK_OPENAI_API_KEY", "from-env")

	env := Env{Prefix: "spendbook"}
	v, ok, err := env.Get(ctx, "openai-api-key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)

	mem := NewMemory(map[string]string{"gemini-api-key": "from-memory"})
	chain := Chain{env, mem}

	v, ok, err = chain.Get(ctx, "gemini-api-key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-memory", v)

	_, ok, err = chain.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
