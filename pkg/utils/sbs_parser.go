package utils

import (
	"math"
	"strconv"
	"strings"
	"time"

	"adsb-ingest-service/internal/domain/entity"
)

// SBS-1 (BaseStation) protocol constants
const (
	SBSMarker      = "MSG"
	SBSDelimiter   = ","
	SBSFieldCount  = 22
	sbsIdxICAO     = 4
	sbsIdxCallsign = 10
	sbsIdxAltitude = 11
	sbsIdxSpeed    = 12
	sbsIdxHeading  = 13
	sbsIdxLat      = 14
	sbsIdxLon      = 15
)

// SBSParser turns SBS-1 feed lines into telemetry records
type SBSParser struct {
	now func() time.Time
}

// NewSBSParser creates a parser stamping records with now. A nil now
// uses the wall clock.
func NewSBSParser(now func() time.Time) *SBSParser {
	if now == nil {
		now = time.Now
	}
	return &SBSParser{now: now}
}

// CanHandle reports whether the line carries the MSG marker
func (p *SBSParser) CanHandle(line string) bool {
	marker, _, _ := strings.Cut(strings.TrimSpace(line), SBSDelimiter)
	return marker == SBSMarker
}

// Parse converts one line. It returns false for short lines, lines with
// another marker and lines without an ICAO address.
func (p *SBSParser) Parse(line string) (entity.TelemetryRecord, bool) {
	fields := strings.Split(strings.TrimSpace(line), SBSDelimiter)
	if len(fields) < SBSFieldCount || fields[0] != SBSMarker {
		return entity.TelemetryRecord{}, false
	}

	icao := strings.TrimSpace(fields[sbsIdxICAO])
	if icao == "" {
		return entity.TelemetryRecord{}, false
	}

	return entity.TelemetryRecord{
		ICAO:            icao,
		Callsign:        parseText(fields[sbsIdxCallsign]),
		Altitude:        parseInt(fields[sbsIdxAltitude]),
		Speed:           parseInt(fields[sbsIdxSpeed]),
		Heading:         parseInt(fields[sbsIdxHeading]),
		Latitude:        parseFloat(fields[sbsIdxLat]),
		Longitude:       parseFloat(fields[sbsIdxLon]),
		IngestTimestamp: p.now().UnixMilli(),
	}, true
}

func parseText(s string) entity.Optional[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return entity.None[string]()
	}
	return entity.Some(s)
}

func parseInt(s string) entity.Optional[int] {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return entity.None[int]()
	}
	return entity.Some(n)
}

func parseFloat(s string) entity.Optional[float64] {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return entity.None[float64]()
	}
	return entity.Some(f)
}
