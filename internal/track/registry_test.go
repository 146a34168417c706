package track

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryListSortedAndComplete(t *testing.T) {
	infos := List()
	require.NotEmpty(t, infos)

	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	assert.True(t, sort.StringsAreSorted(ids), "ids not sorted: %v", ids)

	for _, id := range []string{BruteForceID, Derivative16x5ID, Derivative2_16x5ID, Quadrant16x1ID} {
		assert.Contains(t, ids, id)
	}
}

func TestRegistryDuplicateRegistrationIgnored(t *testing.T) {
	before := len(List())

	Register(Registration{
		Info:    Info{ID: BruteForceID, Channels: 1, Window: 1},
		Factory: func() Tracker { return NewQuadrant16x1() },
	})

	infos := List()
	assert.Len(t, infos, before)

	// The original entry survived: declared geometry is unchanged.
	info, err := Lookup(BruteForceID)
	require.NoError(t, err)
	assert.Equal(t, 16, info.Channels)
	assert.Equal(t, 2, info.Window)
}

func TestRegistryCreateMatchesInfo(t *testing.T) {
	for _, info := range List() {
		tr, err := New(info.ID)
		require.NoError(t, err, info.ID)
		assert.Equal(t, info.ID, tr.ID())
		assert.Equal(t, info.Channels, tr.Channels())
		assert.Equal(t, info.Window, tr.Window())

		if diff := cmp.Diff(info.Params, tr.Params()); diff != "" {
			t.Errorf("%s params mismatch (-registry +instance):\n%s", info.ID, diff)
		}
		if diff := cmp.Diff(info.Defaults, tr.Defaults()); diff != "" {
			t.Errorf("%s defaults mismatch (-registry +instance):\n%s", info.ID, diff)
		}
	}
}

func TestRegistryUnknownID(t *testing.T) {
	_, err := New("NoSuchTracker")
	assert.ErrorIs(t, err, ErrUnknownTracker)

	_, err = Lookup("NoSuchTracker")
	assert.ErrorIs(t, err, ErrUnknownTracker)
}

func TestParamSchemasWellFormed(t *testing.T) {
	for _, info := range List() {
		require.Len(t, info.Defaults, len(info.Params), info.ID)
		for i, p := range info.Params {
			assert.LessOrEqual(t, p.Min, p.Default, "%s/%s", info.ID, p.Key)
			assert.LessOrEqual(t, p.Default, p.Max, "%s/%s", info.ID, p.Key)
			assert.Equal(t, p.Default, info.Defaults[i], "%s/%s", info.ID, p.Key)
		}
	}
}
