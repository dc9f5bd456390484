package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables() Tables {
	return Tables{
		Levels: map[string]string{
			"1.1":  "INTEGER: 3200",
			"1.2":  "INTEGER: -3",
			"1.3":  "INTEGER: 500",
			"1.10": "INTEGER: 10",
		},
		Max: map[string]string{
			"1.1":  "INTEGER: 8000",
			"1.2":  "INTEGER: 20000",
			"1.3":  "INTEGER: -2",
			"1.10": "INTEGER: 100",
		},
		Classes: map[string]string{
			"1.1": "INTEGER: 3",
			"1.2": "INTEGER: 4",
			"1.3": "INTEGER: 3",
		},
		Types: map[string]string{
			"1.1": "INTEGER: 3",
			"1.2": "INTEGER: 9",
			"1.3": "INTEGER: 15",
		},
		Descriptions: map[string]string{
			"1.1":  `STRING: "Black Toner Cartridge"`,
			"1.2":  `STRING: "Unidad de imagen negro"`,
			"1.3":  `STRING: "Fuser Kit"`,
			"1.10": `STRING: "Waste Toner Box"`,
		},
	}
}

func TestNormalizeLevels(t *testing.T) {
	got := NormalizeLevels(sampleTables())
	require.Len(t, got, 4)

	toner := got[0]
	assert.Equal(t, Toner, toner.Type)
	require.NotNil(t, toner.Color)
	assert.Equal(t, "black", *toner.Color)
	require.NotNil(t, toner.Percent)
	assert.Equal(t, 40, *toner.Percent)
	assert.Equal(t, 8000, *toner.Capacity)
	assert.Equal(t, StatusOK, toner.Status)
	assert.Equal(t, 3, *toner.RawClass)

	drum := got[1]
	assert.Equal(t, Drum, drum.Type)
	require.NotNil(t, drum.Color)
	assert.Equal(t, "black", *drum.Color)
	assert.Equal(t, -3, drum.Current)
	assert.Equal(t, StatusSomeRemaining, drum.Status)
	assert.Nil(t, drum.Capacity)
	assert.Nil(t, drum.Percent)

	fuser := got[2]
	assert.Equal(t, Fuser, fuser.Type)
	assert.Nil(t, fuser.Color)
	assert.Equal(t, StatusUnknown, fuser.Status)
	assert.Nil(t, fuser.Capacity)

	waste := got[3]
	assert.Equal(t, Waste, waste.Type)
	assert.Nil(t, waste.RawClass)
	assert.Equal(t, 10, *waste.Percent)
	assert.Equal(t, StatusLow, waste.Status)
}

func TestNormalizeLevelsIdempotent(t *testing.T) {
	tables := sampleTables()
	assert.Equal(t, NormalizeLevels(tables), NormalizeLevels(tables))
	assert.Equal(t, NormalizeStates(tables), NormalizeStates(tables))
}

func TestStatusForPercentBoundaries(t *testing.T) {
	assert.Equal(t, StatusEmpty, StatusForPercent(0))
	assert.Equal(t, StatusEmpty, StatusForPercent(5))
	assert.Equal(t, StatusLow, StatusForPercent(6))
	assert.Equal(t, StatusLow, StatusForPercent(15))
	assert.Equal(t, StatusOK, StatusForPercent(16))
	assert.Equal(t, StatusOK, StatusForPercent(100))
}

func TestSentinelLevels(t *testing.T) {
	for _, capacity := range []string{"INTEGER: 100", "INTEGER: 0", "INTEGER: -2"} {
		tables := Tables{
			Levels: map[string]string{"1.1": "INTEGER: -3", "1.2": "INTEGER: -2", "1.3": "INTEGER: -1"},
			Max:    map[string]string{"1.1": capacity, "1.2": capacity, "1.3": capacity},
		}

		got := NormalizeLevels(tables)
		require.Len(t, got, 3)
		assert.Equal(t, StatusSomeRemaining, got[0].Status)
		assert.Equal(t, StatusUnknown, got[1].Status)
		assert.Equal(t, StatusUnknown, got[2].Status)
		for _, c := range got {
			assert.Nil(t, c.Percent)
			assert.Nil(t, c.Capacity)
		}

		states := NormalizeStates(tables)
		assert.Equal(t, StatusSomeRemaining, states[0].State)
		assert.Equal(t, StatusUnknown, states[1].State)
		assert.Equal(t, StatusUnknown, states[2].State)
	}
}

func TestPercentRounding(t *testing.T) {
	assert.Equal(t, 5, Percent(45, 1000))
	assert.Equal(t, 6, Percent(55, 1000))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
}

func TestNormalizeStates(t *testing.T) {
	got := NormalizeStates(sampleTables())
	require.Len(t, got, 4)

	assert.Equal(t, "1.1", got[0].Index)
	assert.Equal(t, StatusOK, got[0].State)
	assert.Equal(t, 3200, *got[0].RawLevel)
	assert.Equal(t, 8000, *got[0].RawMax)
	assert.Equal(t, "Black Toner Cartridge", *got[0].RawDescription)

	assert.Equal(t, Drum, got[1].Type)
	assert.Equal(t, StatusSomeRemaining, got[1].State)

	assert.Equal(t, StatusUnknown, got[2].State)
	assert.Equal(t, "1.10", got[3].Index)
	assert.Nil(t, got[3].RawType)
}

func TestStateFromLevel(t *testing.T) {
	assert.Equal(t, StatusUnknown, StateFromLevel(nil, intp(100)))
	assert.Equal(t, StatusUnknown, StateFromLevel(intp(50), nil))
	assert.Equal(t, StatusUnknown, StateFromLevel(intp(50), intp(0)))
	assert.Equal(t, StatusEmpty, StateFromLevel(intp(5), intp(100)))
	assert.Equal(t, StatusOK, StateFromLevel(intp(-3), nil))
}

func TestByIndex(t *testing.T) {
	got := ByIndex(map[string]string{
		"1.3.6.1.2.1.43.11.1.1.9.1.1": "INTEGER: 1",
		"1.3.6.1.2.1.43.11.1.1.9.1.2": "INTEGER: 2",
	})
	assert.Equal(t, map[string]string{"1.1": "INTEGER: 1", "1.2": "INTEGER: 2"}, got)
}
