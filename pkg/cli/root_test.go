package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "reqtrap dev")
}

func TestServeFlagDefaults(t *testing.T) {
	flags := serveCmd.Flags()

	port, err := flags.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	adminPort, err := flags.GetInt("admin-port")
	require.NoError(t, err)
	assert.Equal(t, 9090, adminPort)

	rules, err := flags.GetString("rules")
	require.NoError(t, err)
	assert.Empty(t, rules)
}
