package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
AGENTPOOL_TEST_A=value1
export AGENTPOOL_TEST_B = "quoted value"
AGENTPOOL_TEST_C='single'
not a pair
AGENTPOOL_TEST_KEEP=from-file
`), 0o644))

	for _, k := range []string{"AGENTPOOL_TEST_A", "AGENTPOOL_TEST_B", "AGENTPOOL_TEST_C"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("AGENTPOOL_TEST_KEEP", "from-env")

	require.NoError(t, LoadEnv(path))

	assert.Equal(t, "value1", os.Getenv("AGENTPOOL_TEST_A"))
	assert.Equal(t, "quoted value", os.Getenv("AGENTPOOL_TEST_B"))
	assert.Equal(t, "single", os.Getenv("AGENTPOOL_TEST_C"))
	assert.Equal(t, "from-env", os.Getenv("AGENTPOOL_TEST_KEEP"), "existing variables win")
}

func TestLoadEnv_MissingFile(t *testing.T) {
	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestLoadEnvOptional(t *testing.T) {
	assert.NoError(t, LoadEnvOptional(filepath.Join(t.TempDir(), "nope.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AGENTPOOL_TEST_OPT=1\n"), 0o644))
	t.Setenv("AGENTPOOL_TEST_OPT", "")
	require.NoError(t, os.Unsetenv("AGENTPOOL_TEST_OPT"))

	require.NoError(t, LoadEnvOptional(path))
	assert.Equal(t, "1", os.Getenv("AGENTPOOL_TEST_OPT"))
}
