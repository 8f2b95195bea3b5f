package infra

import (
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTable_Self(t *testing.T) {
	pm := NewProcessManager()

	assert.True(t, pm.IsRunning(os.Getpid()))
	assert.False(t, pm.IsRunning(0))
	assert.False(t, pm.IsRunning(-1))
	assert.Equal(t, os.Getpid(), pm.GetCurrentPID())

	name, err := pm.NameByPID(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, name)
}

func TestProcessTable_RunningNames(t *testing.T) {
	names, err := NewProcessManager().RunningNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.True(t, sort.StringsAreSorted(names))

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}
