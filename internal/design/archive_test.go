package design

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/thinfilm/internal/store"
)

func TestArchive(t *testing.T) {
	doc := decode(t, strings.Replace(antireflection, "    inequality: \">=\"\n", "", 1))
	f, targets, err := doc.Build()
	require.NoError(t, err)
	out, err := doc.Run(context.Background(), f, targets, Hooks{})
	require.NoError(t, err)

	st, err := store.NewFSStore(t.TempDir())
	require.NoError(t, err)
	snap, err := doc.Archive(st, "run-1", f, targets, out)
	require.NoError(t, err)

	assert.Equal(t, "ar", snap.Design)
	assert.Equal(t, "refine", snap.Method)
	assert.Equal(t, out.Status, snap.Status)
	assert.Equal(t, []string{"front[0].thickness", "front[1].thickness"}, snap.ParamNames)
	assert.Len(t, snap.Params, 2)

	loaded, err := st.LoadDesign("run-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Params, loaded.Params)

	again, err := Decode(strings.NewReader(loaded.Document), "")
	require.NoError(t, err)
	require.Len(t, again.Front, 2)
	assert.InDelta(t, snap.Params[1], again.Front[1].Thickness, 1e-9)

	a, err := st.LoadSpectrum("run-1")
	require.NoError(t, err)
	assert.Equal(t, "R", a.Kind)
	assert.Len(t, a.Values, 11)
	assert.Equal(t, 45.0, a.Polarization)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "design", (&Document{}).DisplayName())
	assert.Equal(t, "ar", (&Document{Name: "ar"}).DisplayName())
}
