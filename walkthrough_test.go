package offramp_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/offramp"
	"github.com/aretw0/offramp/pkg/adapters/memory"
	"github.com/aretw0/offramp/pkg/domain"
)

func TestWalkthrough_ScriptedCancellation(t *testing.T) {
	store := memory.NewStore()
	eng, err := offramp.New(offramp.WithStore(store))
	require.NoError(t, err)
	ctx := context.Background()
	user := cohortUser(t, domain.VariantA)

	s, err := eng.OpenSession(ctx, user, "sub-1")
	require.NoError(t, err)

	script := strings.Join([]string{
		"2", // Not yet - I'm still looking
		"0", "0", "0",
		"1", // Continue
		"too-expensive",
		"25",
		"1", // Complete Cancellation
		"1", // Back to Jobs
	}, "\n") + "\n"

	var out bytes.Buffer
	w := offramp.NewWalkthrough()
	w.Input = strings.NewReader(script)
	w.Output = &out
	w.Headless = true

	require.NoError(t, w.Run(ctx, s))
	assert.True(t, s.Completed())

	recs, err := store.Fetch(ctx, user, "sub-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "too-expensive", recs[0].CancelReason)
	assert.Equal(t, "25", recs[0].FlowData["cancelReason_too-expensive"])

	assert.Contains(t, out.String(), "Hey mate, quick one before you go.")
	assert.Contains(t, out.String(), "Sorry to see you go, mate.")
}

func TestWalkthrough_ValidationReprompts(t *testing.T) {
	eng, err := offramp.New()
	require.NoError(t, err)
	ctx := context.Background()
	user := cohortUser(t, domain.VariantA)

	s, err := eng.OpenSession(ctx, user, "sub-1")
	require.NoError(t, err)

	// The first pass leaves the usage questions empty, the gate rejects the
	// advance, and the second pass fills them in.
	script := strings.Join([]string{
		"2",
		"", "", "",
		"1",
		"1-5", "0", "1-2",
		"1",
		"decided-not-to-move",
		"Staying put for family reasons this year, sadly.",
		"1",
		"1",
	}, "\n") + "\n"

	var out bytes.Buffer
	w := offramp.NewWalkthrough()
	w.Input = strings.NewReader(script)
	w.Output = &out
	w.Headless = true

	require.NoError(t, w.Run(ctx, s))
	assert.True(t, s.Completed())
	assert.Contains(t, out.String(), "This field is required")
}

func TestWalkthrough_RequiresIO(t *testing.T) {
	eng, err := offramp.New()
	require.NoError(t, err)
	s, err := eng.OpenSession(context.Background(), "user-1", "sub-1")
	require.NoError(t, err)

	w := offramp.NewWalkthrough()
	assert.Error(t, w.Run(context.Background(), s))
	w.Input = strings.NewReader("")
	assert.Error(t, w.Run(context.Background(), s))
}
