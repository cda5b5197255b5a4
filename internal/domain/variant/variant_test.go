package variant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDecide covers module presence and the darwin override.
func TestDecide(t *testing.T) {
	t.Parallel()

	require.False(t, Decide("linux", true, false).Applicable)
	require.False(t, Decide("windows", false, true).Applicable)

	plan := Decide("windows", true, true)
	require.True(t, plan.Applicable)
	require.True(t, plan.AskUser)
	require.Equal(t, GPU, plan.Choose(true))
	require.Equal(t, CPU, plan.Choose(false))

	plan = Decide("darwin", true, true)
	require.True(t, plan.Applicable)
	require.False(t, plan.AskUser)
	require.Equal(t, CPU, plan.Choose(true))
}

// TestModulesObsolete checks that the opposite module is removed.
func TestModulesObsolete(t *testing.T) {
	t.Parallel()

	m := Modules{CPU: "libs/a.py", GPU: "libs/a.pyd"}
	require.Equal(t, "libs/a.py", m.Obsolete(GPU))
	require.Equal(t, "libs/a.pyd", m.Obsolete(CPU))
}
