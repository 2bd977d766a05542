package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 75.0, Percentage(3, 1))
	assert.Equal(t, 66.7, Percentage(2, 1))
	assert.Equal(t, 100.0, Percentage(5, 0))
	assert.Equal(t, 0.0, Ratio(0, 0))
}

func TestTimeOfDayScanAndFormat(t *testing.T) {
	var tod TimeOfDay
	require.NoError(t, tod.Scan([]byte("07:30:00")))
	assert.Equal(t, NewTimeOfDay(7, 30, 0), tod)

	require.NoError(t, tod.Scan(time.Date(0, 1, 1, 13, 5, 9, 0, time.UTC)))
	assert.Equal(t, "13:05:09", tod.String())

	require.NoError(t, tod.Scan("08:00:00.000000"))
	assert.Equal(t, NewTimeOfDay(8, 0, 0), tod)

	parsed, err := ParseTimeOfDay("09:15")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(9, 30, 0), parsed.Add(15*time.Minute))

	_, err = ParseTimeOfDay("25:99")
	assert.Error(t, err)
}

func TestDateArithmeticAndJSON(t *testing.T) {
	d, err := ParseDate("2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2024-02-26", d.AddDays(-7).String())
	assert.Equal(t, 7, d.DaysSince(d.AddDays(-7)))

	payload, err := json.Marshal(struct {
		Date Date `json:"date"`
	}{Date: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-03-04"}`, string(payload))

	var scanned Date
	require.NoError(t, scanned.Scan(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, d, scanned)

	value, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", value)
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*60*60)
	instant := time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-04", DateOf(instant.In(loc)).String())
}

func TestWeekdayOf(t *testing.T) {
	day, ok := WeekdayOf(time.Wednesday)
	assert.True(t, ok)
	assert.Equal(t, Wednesday, day)

	_, ok = WeekdayOf(time.Sunday)
	assert.False(t, ok)

	var parsed Weekday
	require.NoError(t, json.Unmarshal([]byte(`"Friday"`), &parsed))
	assert.Equal(t, Friday, parsed)
}
