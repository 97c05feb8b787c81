package problem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineVariableIdempotent(t *testing.T) {
	p := New()
	require.NoError(t, p.DefineVariable("power",
		Set("timestep", Strings("t1", "t2")...),
		Set("unit", Strings("u1", "u2")...),
	))
	assert.Equal(t, 4, p.VariableCount())

	// Same declaration again must not grow the registry.
	require.NoError(t, p.DefineVariable("power",
		Set("timestep", Strings("t1", "t2")...),
		Set("unit", Strings("u1", "u2")...),
	))
	assert.Equal(t, 4, p.VariableCount())

	// Partially overlapping declaration only adds the new rows.
	require.NoError(t, p.DefineVariable("power",
		Set("timestep", Strings("t2", "t3")...),
		Set("unit", Strings("u1", "u2")...),
	))
	assert.Equal(t, 6, p.VariableCount())
}

func TestDefineVariableColumnMismatch(t *testing.T) {
	p := New()
	require.NoError(t, p.DefineVariable("power", Set("timestep", Strings("t1")...)))

	err := p.DefineVariable("power", Set("scenario", Strings("s1")...))
	var structErr *StructureError
	require.ErrorAs(t, err, &structErr)
}

func TestIndexSelection(t *testing.T) {
	p := New()
	require.NoError(t, p.DefineVariable("power",
		Set("timestep", Strings("t1", "t2")...),
		Set("unit", Strings("u1", "u2")...),
	))

	tests := []struct {
		name string
		sel  Selector
		want []int
	}{
		{
			name: "all rows",
			sel:  Sel("power"),
			want: []int{0, 1, 2, 3},
		},
		{
			name: "single unit",
			sel:  Sel("power", Set("unit", Strings("u2")...)),
			want: []int{1, 3},
		},
		{
			name: "single timestep",
			sel:  Sel("power", Set("timestep", Strings("t2")...)),
			want: []int{2, 3},
		},
		{
			name: "single row",
			sel:  Sel("power", Set("timestep", Strings("t1")...), Set("unit", Strings("u1")...)),
			want: []int{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Index(tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexEmptySelection(t *testing.T) {
	p := New()
	require.NoError(t, p.DefineVariable("power", Set("timestep", Strings("t1")...)))

	_, err := p.Index(Sel("power", Set("timestep", Strings("t9")...)))
	var emptyErr *EmptyIndexError
	require.ErrorAs(t, err, &emptyErr)

	// A relaxed selector turns the empty match into a no-op.
	got, err := p.Index(Sel("power", Set("timestep", Strings("t9")...)).Relax())
	require.NoError(t, err)
	assert.Empty(t, got)

	// Unknown variable names behave the same way.
	_, err = p.Index(Sel("missing"))
	require.ErrorAs(t, err, &emptyErr)
}

func TestSubSecondTimeKeysStayDistinct(t *testing.T) {
	p := New()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(500 * time.Millisecond)

	// Two timesteps within the same second must register as two rows, not
	// collapse into one.
	require.NoError(t, p.DefineVariable("power", Set("timestep", Times(t0, t1)...)))
	assert.Equal(t, 2, p.VariableCount())

	got, err := p.Index(Sel("power", Set("timestep", TimeKey(t1))))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)

	// Their display labels differ too, so result tables keep both rows.
	assert.NotEqual(t, TimeKey(t0).String(), TimeKey(t1).String())
}

func TestKeyKinds(t *testing.T) {
	p := New()
	require.NoError(t, p.DefineVariable("x", Set("step", IntRange(3)...)))
	assert.Equal(t, 3, p.VariableCount())

	// Int and string keys of the same spelling are distinct.
	require.NoError(t, p.DefineVariable("y", Set("k", IntKey(1), StringKey("1"))))
	got, err := p.Index(Sel("y"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
