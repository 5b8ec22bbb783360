package obslog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeJSON(t *testing.T) {
	err := Initialize(true, false)
	require.NoError(t, err)
	assert.NotNil(t, Log)
}

func TestInitializeConsole(t *testing.T) {
	err := Initialize(false, true)
	require.NoError(t, err)
	assert.NotNil(t, Log)
}

func TestNamedReturnsChildLogger(t *testing.T) {
	require.NoError(t, Initialize(false, false))
	child := Named("scheduler")
	assert.NotNil(t, child)
}
