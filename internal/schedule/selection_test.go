package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtcaller/court-booking-engine/internal/schedule"
)

func TestSelectionSet_ToggleAddRemove(t *testing.T) {
	set := schedule.NewSelectionSet(10)
	day := time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)

	added, err := set.Toggle(day, "08:00 - 09:00")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, set.Len())

	// Toggling the same slot again removes it, without error.
	added, err = set.Toggle(day, "08:00 - 09:00")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 0, set.Len())
}

func TestSelectionSet_CapacityNeverExceeded(t *testing.T) {
	const max = 3
	set := schedule.NewSelectionSet(max)
	day := time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)

	labels := []string{"08:00 - 09:00", "09:00 - 10:00", "10:00 - 11:00", "11:00 - 12:00"}
	for i, label := range labels {
		_, err := set.Toggle(day, label)
		if i < max {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, schedule.ErrSelectionFull)
		}
		assert.LessOrEqual(t, set.Len(), max)
	}
	assert.Equal(t, max, set.Len())

	// A full set still allows removal, and removal frees capacity.
	_, err := set.Toggle(day, "09:00 - 10:00")
	require.NoError(t, err)
	_, err = set.Toggle(day, "11:00 - 12:00")
	assert.NoError(t, err)
}

func TestSelectionSet_SameLabelDifferentDates(t *testing.T) {
	set := schedule.NewSelectionSet(10)
	mon := time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)

	_, err := set.Toggle(mon, "08:00 - 09:00")
	require.NoError(t, err)
	_, err = set.Toggle(tue, "08:00 - 09:00")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestSelectionSet_Requests(t *testing.T) {
	set := schedule.NewSelectionSet(10)
	day := time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC)

	_, err := set.Toggle(day, "09:00 - 10:00")
	require.NoError(t, err)
	_, err = set.Toggle(day, "08:00 - 09:00")
	require.NoError(t, err)

	reqs, err := set.Requests()
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	// Insertion order is preserved for stable UI indexing.
	assert.Equal(t, schedule.SlotRequest{SlotDate: "2024-07-08", StartTime: "09:00:00", EndTime: "10:00:00"}, reqs[0])
	assert.Equal(t, schedule.SlotRequest{SlotDate: "2024-07-08", StartTime: "08:00:00", EndTime: "09:00:00"}, reqs[1])
}
