package idx_test

import (
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	id := idx.New()
	require.Len(t, id.String(), 26)

	_, err := ulid.ParseStrict(id.String())
	require.NoError(t, err)
}

func TestNewIsIncreasing(t *testing.T) {
	t.Parallel()

	prev := idx.New()
	for range 100 {
		next := idx.New()
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}
