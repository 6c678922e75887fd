package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestParser() *SBSParser {
	return NewSBSParser(func() time.Time { return fixedNow })
}

// sbsLine builds a 22-field MSG,3 line with the given fields overridden
func sbsLine(overrides map[int]string) string {
	fields := make([]string, SBSFieldCount)
	copy(fields, []string{"MSG", "3", "1", "1", "", "1", "2025/03/14", "12:00:00.000", "2025/03/14", "12:00:00.000"})
	fields[21] = "0"
	for i, v := range overrides {
		fields[i] = v
	}
	return strings.Join(fields, ",")
}

func TestSBSParser_FullPositionReport(t *testing.T) {
	line := "MSG,3,1,1,ABC123,1,2025/03/14,12:00:00.000,2025/03/14,12:00:00.000,FLT42,35000,250,90,51.5,-0.1,,,,,,0"
	require.Len(t, strings.Split(line, ","), SBSFieldCount)

	rec, ok := newTestParser().Parse(line)
	require.True(t, ok)

	assert.Equal(t, "ABC123", rec.ICAO)
	assert.Equal(t, "FLT42", rec.Callsign.Value)
	assert.True(t, rec.Callsign.Present)
	assert.Equal(t, 35000, rec.Altitude.Value)
	assert.True(t, rec.Altitude.Present)
	assert.Equal(t, 250, rec.Speed.Value)
	assert.Equal(t, 90, rec.Heading.Value)
	assert.Equal(t, 51.5, rec.Latitude.Value)
	assert.Equal(t, -0.1, rec.Longitude.Value)
	assert.Equal(t, fixedNow.UnixMilli(), rec.IngestTimestamp)
	assert.True(t, rec.HasPosition())
}

func TestSBSParser_AllOptionalFieldsEmpty(t *testing.T) {
	line := "MSG,3,1,1,DEF456,1,2025/03/14,12:00:00.000,2025/03/14,12:00:00.000,,,,,,,,,,,,0"
	require.Len(t, strings.Split(line, ","), SBSFieldCount)

	rec, ok := newTestParser().Parse(line)
	require.True(t, ok)

	assert.Equal(t, "DEF456", rec.ICAO)
	assert.False(t, rec.Callsign.Present)
	assert.False(t, rec.Altitude.Present)
	assert.False(t, rec.Speed.Present)
	assert.Equal(t, 0, rec.Speed.Value)
	assert.False(t, rec.Heading.Present)
	assert.Equal(t, 0, rec.Heading.Value)
	assert.False(t, rec.Latitude.Present)
	assert.False(t, rec.Longitude.Present)
	assert.False(t, rec.HasPosition())
}

func TestSBSParser_Rejects(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"short line", "MSG,3,1,1,ABC123,1"},
		{"one field short", strings.Join(strings.Split(sbsLine(map[int]string{4: "ABC123"}), ",")[:SBSFieldCount-1], ",")},
		{"wrong marker", sbsLine(map[int]string{0: "AIR", 4: "ABC123"})},
		{"lowercase marker", sbsLine(map[int]string{0: "msg", 4: "ABC123"})},
		{"empty icao", sbsLine(map[int]string{4: ""})},
		{"blank icao", sbsLine(map[int]string{4: "   "})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := p.Parse(tt.line)
			assert.False(t, ok)
		})
	}
}

func TestSBSParser_NeverEmitsEmptyICAO(t *testing.T) {
	p := newTestParser()
	for _, icao := range []string{"", " ", "\t", "A1B2C3", " 4CA2D1 "} {
		rec, ok := p.Parse(sbsLine(map[int]string{4: icao}))
		if ok {
			assert.NotEmpty(t, rec.ICAO)
			assert.Equal(t, strings.TrimSpace(icao), rec.ICAO)
		}
	}
}

func TestSBSParser_DefensiveCoercion(t *testing.T) {
	rec, ok := newTestParser().Parse(sbsLine(map[int]string{
		4:  "ABC123",
		10: "   ",
		11: "FL350",
		12: "25x",
		13: "9.5",
		14: "north",
		15: "NaN",
	}))
	require.True(t, ok)

	assert.False(t, rec.Callsign.Present)
	assert.False(t, rec.Altitude.Present)
	assert.False(t, rec.Speed.Present)
	assert.Equal(t, 0, rec.Speed.Value)
	assert.False(t, rec.Heading.Present)
	assert.False(t, rec.Latitude.Present)
	assert.False(t, rec.Longitude.Present)
	assert.Equal(t, 0.0, rec.Longitude.Value)
}

func TestSBSParser_ZeroAltitudeIsPresent(t *testing.T) {
	rec, ok := newTestParser().Parse(sbsLine(map[int]string{4: "ABC123", 11: "0"}))
	require.True(t, ok)
	assert.True(t, rec.Altitude.Present)
	assert.Equal(t, 0, rec.Altitude.Value)
}

func TestSBSParser_TrimsWhitespace(t *testing.T) {
	line := sbsLine(map[int]string{4: "ABC123", 10: " FLT42  ", 11: " 1200 "}) + "\r\n"

	rec, ok := newTestParser().Parse(line)
	require.True(t, ok)
	assert.Equal(t, "FLT42", rec.Callsign.Value)
	assert.Equal(t, 1200, rec.Altitude.Value)
}

func TestSBSParser_CanHandle(t *testing.T) {
	p := newTestParser()
	assert.True(t, p.CanHandle("MSG,3,1,1,ABC123"))
	assert.True(t, p.CanHandle("  MSG,8"))
	assert.False(t, p.CanHandle("SEL,,496,2286,4CA4E5,27215,2010/02/19"))
	assert.False(t, p.CanHandle("MSGX,3"))
	assert.False(t, p.CanHandle(""))
}

func TestSBSParser_DefaultClock(t *testing.T) {
	before := time.Now().UnixMilli()
	rec, ok := NewSBSParser(nil).Parse(sbsLine(map[int]string{4: "ABC123"}))
	require.True(t, ok)
	assert.GreaterOrEqual(t, rec.IngestTimestamp, before)
}
