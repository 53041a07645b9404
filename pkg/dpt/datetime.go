package dpt

import (
	"fmt"
	"time"
)

// Weekday is the KNX day of week. Zero means no day or any day.
type Weekday uint8

// Weekdays.
const (
	NoDay Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"NoDay", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (w Weekday) String() string {
	if int(w) < len(weekdayNames) {
		return weekdayNames[w]
	}
	return fmt.Sprintf("Weekday(%d)", uint8(w))
}

// WeekdayOf converts a time.Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekday(d)
}

// Time is a DPT 10.001 time of day.
type Time struct {
	Weekday Weekday
	Hour    int
	Minute  int
	Second  int
}

// TimeOf returns the time of day of t, including its weekday.
func TimeOf(t time.Time) Time {
	return Time{Weekday: WeekdayOf(t.Weekday()), Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t Time) check() error {
	switch {
	case t.Hour < 0 || t.Hour > 23:
		return fmt.Errorf("hour %d outside [0, 23]", t.Hour)
	case t.Minute < 0 || t.Minute > 59:
		return fmt.Errorf("minute %d outside [0, 59]", t.Minute)
	case t.Second < 0 || t.Second > 59:
		return fmt.Errorf("second %d outside [0, 59]", t.Second)
	case t.Weekday > Sunday:
		return fmt.Errorf("weekday %d outside [0, 7]", t.Weekday)
	}
	return nil
}

// TimeOfDay transcodes DPT 10.001. Values are Time; time.Time is accepted
// on encode.
type TimeOfDay struct {
	base
}

// Encode returns the payload for t.
func (d *TimeOfDay) Encode(t Time) (Payload, error) {
	if err := t.check(); err != nil {
		return nil, d.desc.conversionError("%v", err)
	}
	return Array{uint8(t.Weekday)<<5 | uint8(t.Hour), uint8(t.Minute), uint8(t.Second)}, nil
}

// Decode returns the time carried by p.
func (d *TimeOfDay) Decode(p Payload) (Time, error) {
	b, err := d.desc.bytes(p)
	if err != nil {
		return Time{}, err
	}
	t := Time{
		Weekday: Weekday(b[0] >> 5),
		Hour:    int(b[0] & 0x1F),
		Minute:  int(b[1] & 0x3F),
		Second:  int(b[2] & 0x3F),
	}
	if err := t.check(); err != nil {
		return Time{}, d.desc.conversionError("%v", err)
	}
	return t, nil
}

// ToKNX implements Transcoder.
func (d *TimeOfDay) ToKNX(v any) (Payload, error) {
	switch x := v.(type) {
	case Time:
		return d.Encode(x)
	case time.Time:
		return d.Encode(TimeOf(x))
	}
	return nil, d.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (d *TimeOfDay) FromKNX(p Payload) (any, error) {
	return d.Decode(p)
}

// Date is a DPT 11.001 calendar date in 1990..2089.
type Date struct {
	Year  int
	Month int
	Day   int
}

// DateOf returns the calendar date of t.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

// CalendarDate transcodes DPT 11.001. Values are Date; time.Time is accepted
// on encode.
type CalendarDate struct {
	base
}

func dateInRange(day, month, knxYear int) bool {
	return day >= 1 && day <= 31 && month >= 1 && month <= 12 && knxYear >= 0 && knxYear <= 99
}

// Encode returns the payload for v.
func (c *CalendarDate) Encode(v Date) (Payload, error) {
	var year int
	switch {
	case v.Year >= 2000 && v.Year < 2090:
		year = v.Year - 2000
	case v.Year >= 1990 && v.Year < 2000:
		year = v.Year - 1900
	default:
		return nil, c.desc.conversionError("year %d outside [1990, 2089]", v.Year)
	}
	if !dateInRange(v.Day, v.Month, year) {
		return nil, c.desc.conversionError("invalid date %+v", v)
	}
	return Array{uint8(v.Day), uint8(v.Month), uint8(year)}, nil
}

// Decode returns the date carried by p.
func (c *CalendarDate) Decode(p Payload) (Date, error) {
	b, err := c.desc.bytes(p)
	if err != nil {
		return Date{}, err
	}
	day, month, year := int(b[0]&0x1F), int(b[1]&0x0F), int(b[2]&0x7F)
	if !dateInRange(day, month, year) {
		return Date{}, c.desc.conversionError("invalid date % x", b)
	}
	if year >= 90 {
		year += 1900
	} else {
		year += 2000
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// ToKNX implements Transcoder.
func (c *CalendarDate) ToKNX(v any) (Payload, error) {
	switch x := v.(type) {
	case Date:
		return c.Encode(x)
	case time.Time:
		return c.Encode(DateOf(x))
	}
	return nil, c.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (c *CalendarDate) FromKNX(p Payload) (any, error) {
	return c.Decode(p)
}

// DateTime is a DPT 19.001 value. A nil field is flagged invalid on the
// wire. Month and Day are valid together, as are Hour, Minute and Second.
type DateTime struct {
	Year       *int
	Month      *int
	Day        *int
	Hour       *int
	Minute     *int
	Second     *int
	Weekday    *Weekday
	WorkingDay *bool

	Fault          bool
	DST            bool
	ExternalSync   bool
	SourceReliable bool
}

// DateTimeOf returns a fully valid DateTime for t.
func DateTimeOf(t time.Time) DateTime {
	y, mo, d := t.Year(), int(t.Month()), t.Day()
	h, mi, s := t.Hour(), t.Minute(), t.Second()
	wd := WeekdayOf(t.Weekday())
	return DateTime{Year: &y, Month: &mo, Day: &d, Hour: &h, Minute: &mi, Second: &s, Weekday: &wd}
}

// DateTime flag bits of octet 7 and 8.
const (
	dtFault             = 0x80
	dtWorkingDay        = 0x40
	dtWorkingDayInvalid = 0x20
	dtYearInvalid       = 0x10
	dtDateInvalid       = 0x08
	dtWeekdayInvalid    = 0x04
	dtTimeInvalid       = 0x02
	dtDST               = 0x01

	dtExternalSync   = 0x80
	dtSourceReliable = 0x40
)

func (v DateTime) check() error {
	if (v.Month == nil) != (v.Day == nil) {
		return fmt.Errorf("month and day must be set together")
	}
	if (v.Hour == nil) != (v.Minute == nil) || (v.Hour == nil) != (v.Second == nil) {
		return fmt.Errorf("hour, minute and second must be set together")
	}
	rangeChecks := []struct {
		name     string
		v        *int
		min, max int
	}{
		{"year", v.Year, 1900, 2155},
		{"month", v.Month, 1, 12},
		{"day", v.Day, 1, 31},
		{"hour", v.Hour, 0, 24},
		{"minute", v.Minute, 0, 59},
		{"second", v.Second, 0, 59},
	}
	for _, c := range rangeChecks {
		if c.v != nil && (*c.v < c.min || *c.v > c.max) {
			return fmt.Errorf("%s %d outside [%d, %d]", c.name, *c.v, c.min, c.max)
		}
	}
	if v.Weekday != nil && *v.Weekday > Sunday {
		return fmt.Errorf("weekday %d outside [0, 7]", *v.Weekday)
	}
	if v.Hour != nil && *v.Hour == 24 && (*v.Minute != 0 || *v.Second != 0) {
		return fmt.Errorf("hour 24 requires zero minutes and seconds")
	}
	return nil
}

// DateAndTime transcodes DPT 19.001. Values are DateTime; time.Time is
// accepted on encode.
type DateAndTime struct {
	base
}

func intOr0(p *int) uint8 {
	if p == nil {
		return 0
	}
	return uint8(*p)
}

// Encode returns the payload for v.
func (d *DateAndTime) Encode(v DateTime) (Payload, error) {
	if err := v.check(); err != nil {
		return nil, d.desc.conversionError("%v", err)
	}
	out := make(Array, 8)
	if v.Year != nil {
		out[0] = uint8(*v.Year - 1900)
	}
	out[1] = intOr0(v.Month)
	out[2] = intOr0(v.Day)
	var wd uint8
	if v.Weekday != nil {
		wd = uint8(*v.Weekday)
	}
	out[3] = wd<<5 | intOr0(v.Hour)
	out[4] = intOr0(v.Minute)
	out[5] = intOr0(v.Second)

	var flags uint8
	if v.Fault {
		flags |= dtFault
	}
	if v.WorkingDay == nil {
		flags |= dtWorkingDayInvalid
	} else if *v.WorkingDay {
		flags |= dtWorkingDay
	}
	if v.Year == nil {
		flags |= dtYearInvalid
	}
	if v.Month == nil {
		flags |= dtDateInvalid
	}
	if v.Weekday == nil {
		flags |= dtWeekdayInvalid
	}
	if v.Hour == nil {
		flags |= dtTimeInvalid
	}
	if v.DST {
		flags |= dtDST
	}
	out[6] = flags
	if v.ExternalSync {
		out[7] |= dtExternalSync
	}
	if v.SourceReliable {
		out[7] |= dtSourceReliable
	}
	return out, nil
}

func intPtr(v int) *int { return &v }

// Decode returns the value carried by p.
func (d *DateAndTime) Decode(p Payload) (DateTime, error) {
	b, err := d.desc.bytes(p)
	if err != nil {
		return DateTime{}, err
	}
	flags := b[6]
	v := DateTime{
		Fault:          flags&dtFault != 0,
		DST:            flags&dtDST != 0,
		ExternalSync:   b[7]&dtExternalSync != 0,
		SourceReliable: b[7]&dtSourceReliable != 0,
	}
	if flags&dtYearInvalid == 0 {
		v.Year = intPtr(int(b[0]) + 1900)
	}
	if flags&dtDateInvalid == 0 {
		v.Month = intPtr(int(b[1] & 0x0F))
		v.Day = intPtr(int(b[2] & 0x1F))
	}
	if flags&dtWeekdayInvalid == 0 {
		wd := Weekday(b[3] >> 5)
		v.Weekday = &wd
	}
	if flags&dtTimeInvalid == 0 {
		v.Hour = intPtr(int(b[3] & 0x1F))
		v.Minute = intPtr(int(b[4] & 0x3F))
		v.Second = intPtr(int(b[5] & 0x3F))
	}
	if flags&dtWorkingDayInvalid == 0 {
		wd := flags&dtWorkingDay != 0
		v.WorkingDay = &wd
	}
	if err := v.check(); err != nil {
		return DateTime{}, d.desc.conversionError("%v", err)
	}
	return v, nil
}

// ToKNX implements Transcoder.
func (d *DateAndTime) ToKNX(v any) (Payload, error) {
	switch x := v.(type) {
	case DateTime:
		return d.Encode(x)
	case time.Time:
		return d.Encode(DateTimeOf(x))
	}
	return nil, d.desc.conversionError("cannot encode %T %v", v, v)
}

// FromKNX implements Transcoder.
func (d *DateAndTime) FromKNX(p Payload) (any, error) {
	return d.Decode(p)
}
