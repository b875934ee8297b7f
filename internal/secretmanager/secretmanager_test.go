package secretmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvSecretManagerResolvesPrefixedVars(t *testing.T) {
	t.Setenv("FLUX_SECRET_API_KEY", "s3cr3t")
	m := NewEnvSecretManager("FLUX_SECRET_")

	secrets, err := m.Get([]string{"API_KEY"})
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", secrets["API_KEY"])
}

func TestEnvSecretManagerMissingErrors(t *testing.T) {
	m := NewEnvSecretManager("FLUX_SECRET_")
	_, err := m.Get([]string{"DOES_NOT_EXIST"})
	require.Error(t, err, "Get() should error on a missing secret")
}
