package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures every rendering carries the semantic version.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, Full(), "sia-bridge")
	require.Equal(t, "sia-bridge/"+Short(), UserAgent())
}
