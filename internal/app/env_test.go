package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "  value ")
	t.Setenv("TEST_BLANK", "  ")
	t.Setenv("TEST_BOOL", "off")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_INT", "x")
	t.Setenv("TEST_DUR", "750ms")

	require.Equal(t, "value", EnvOrDefault("TEST_STR", "d"))
	require.Equal(t, "d", EnvOrDefault("TEST_BLANK", "d"))
	require.False(t, EnvBool("TEST_BOOL", true))
	require.True(t, EnvBool("TEST_MISSING", true))
	require.Equal(t, 0.25, EnvFloat("TEST_FLOAT", 1))
	require.Equal(t, 7, EnvInt("TEST_INT", 7))
	require.Equal(t, 750*time.Millisecond, EnvDuration("TEST_DUR", time.Second))
}
