package dpt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeOfDay(t *testing.T) {
	tr := mustLookup(t, "10.001").(*TimeOfDay)

	p, err := tr.Encode(Time{Weekday: Tuesday, Hour: 13, Minute: 14, Second: 15})
	require.NoError(t, err)
	assert.Equal(t, Array{0x4D, 0x0E, 0x0F}, p)

	v, err := tr.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, Time{Weekday: Tuesday, Hour: 13, Minute: 14, Second: 15}, v)

	ts := time.Date(2024, 6, 2, 7, 8, 9, 0, time.UTC) // a Sunday
	p, err = tr.ToKNX(ts)
	require.NoError(t, err)
	assert.Equal(t, Array{0xE7, 0x08, 0x09}, p)

	_, err = tr.Encode(Time{Hour: 24})
	assert.ErrorIs(t, err, ErrConversion)
	_, err = tr.Decode(Array{0x18, 0, 0})
	assert.ErrorIs(t, err, ErrConversion)
	_, err = tr.Decode(Array{0, 0})
	assert.ErrorIs(t, err, ErrCouldNotParseTelegram)
}

func TestCalendarDate(t *testing.T) {
	tr := mustLookup(t, "date").(*CalendarDate)

	tests := []struct {
		date Date
		raw  Array
	}{
		{Date{Year: 1990, Month: 1, Day: 31}, Array{0x1F, 0x01, 0x5A}},
		{Date{Year: 2000, Month: 2, Day: 29}, Array{0x1D, 0x02, 0x00}},
		{Date{Year: 2089, Month: 12, Day: 1}, Array{0x01, 0x0C, 0x59}},
	}
	for _, tt := range tests {
		p, err := tr.Encode(tt.date)
		require.NoError(t, err)
		assert.Equal(t, tt.raw, p)

		v, err := tr.Decode(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.date, v)
	}

	for _, y := range []int{1989, 2090} {
		_, err := tr.Encode(Date{Year: y, Month: 1, Day: 1})
		assert.ErrorIs(t, err, ErrConversion, "year %d", y)
	}
	_, err := tr.Decode(Array{0x00, 0x01, 0x01})
	assert.ErrorIs(t, err, ErrConversion)

	d := Date{Year: 2024, Month: 3, Day: 5}
	assert.Equal(t, d, DateOf(d.Time(time.UTC)))
}

func TestDateAndTime(t *testing.T) {
	tr := mustLookup(t, "datetime").(*DateAndTime)

	ts := time.Date(2017, 11, 28, 23, 7, 24, 0, time.UTC)
	p, err := tr.ToKNX(ts)
	require.NoError(t, err)
	assert.Equal(t, Array{0x75, 0x0B, 0x1C, 0x57, 0x07, 0x18, 0x20, 0x00}, p)

	v, err := tr.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, DateTimeOf(ts), v)

	p, err = tr.Encode(DateTime{})
	require.NoError(t, err)
	assert.Equal(t, Array{0, 0, 0, 0, 0, 0, 0x3E, 0}, p)

	v, err = tr.Decode(p)
	require.NoError(t, err)
	assert.Nil(t, v.Year)
	assert.Nil(t, v.Hour)
	assert.Nil(t, v.WorkingDay)

	working := true
	year := 2020
	p, err = tr.Encode(DateTime{Year: &year, WorkingDay: &working, DST: true, SourceReliable: true})
	require.NoError(t, err)
	assert.Equal(t, Array{0x78, 0, 0, 0, 0, 0, 0x4F, 0x40}, p)

	hour := 12
	_, err = tr.Encode(DateTime{Hour: &hour})
	assert.ErrorIs(t, err, ErrConversion)

	h24, zero := 24, 0
	_, err = tr.Encode(DateTime{Hour: &h24, Minute: &zero, Second: &hour})
	assert.ErrorIs(t, err, ErrConversion)
}
