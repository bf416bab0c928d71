package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeJSON(t *testing.T) {
	err := Initialize(true)
	require.NoError(t, err)
	require.NotNil(t, Logger)
}

func TestInitializeConsole(t *testing.T) {
	err := Initialize(false)
	require.NoError(t, err)
	Named("aggregator").Infow("test", FieldComponent, "aggregator")
}
