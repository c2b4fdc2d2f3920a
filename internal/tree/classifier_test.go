package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/treefell/internal/world/block"
)

func TestNewSpecies_RejectsOverlap(t *testing.T) {
	_, err := NewSpecies("broken", []block.Material{block.OakLog}, []block.Material{block.OakLog})
	assert.ErrorIs(t, err, ErrOverlappingSets)

	_, err = NewSpecies("empty", nil, []block.Material{block.OakLeaves})
	assert.ErrorIs(t, err, ErrNoLogMaterials)
}

func TestClassifier_SpeciesFor(t *testing.T) {
	c, err := NewClassifier(DefaultSpecies()...)
	require.NoError(t, err)

	sp, ok := c.SpeciesFor(block.BirchLog)
	require.True(t, ok)
	assert.Equal(t, "birch", sp.Name)

	_, ok = c.SpeciesFor(block.BirchLeaves)
	assert.False(t, ok, "Листва не определяет породу")

	assert.Equal(t, KindLog, c.Classify(block.BirchLog, sp))
	assert.Equal(t, KindLeaf, c.Classify(block.BirchLeaves, sp))
	assert.Equal(t, KindNone, c.Classify(block.OakLeaves, sp), "Чужая листва не относится к породе")
	assert.Equal(t, KindNone, c.Classify(block.BirchLog, nil))
}

func TestClassifier_DuplicateLogOwner(t *testing.T) {
	a, err := NewSpecies("a", []block.Material{block.OakLog}, nil)
	require.NoError(t, err)
	b, err := NewSpecies("b", []block.Material{block.OakLog}, nil)
	require.NoError(t, err)

	_, err = NewClassifier(a, b)
	assert.ErrorIs(t, err, ErrDuplicateLogOwner)
}

func TestDefaultSpecies_Disjoint(t *testing.T) {
	for _, sp := range DefaultSpecies() {
		for _, m := range sp.Logs.Slice() {
			assert.False(t, sp.Leaves.Contains(m), "%s: %s и ствол, и листва", sp.Name, m)
		}
	}
}

func TestMaterialSet_String(t *testing.T) {
	s := NewMaterialSet(block.OakLeaves, block.OakLog)
	assert.Equal(t, "[oak_log, oak_leaves]", s.String())
	assert.Equal(t, 2, s.Len())
}
