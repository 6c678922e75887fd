package usecase

import (
	"adsb-ingest-service/internal/domain/entity"
)

// LineParser defines the interface for feed message parsers
type LineParser interface {
	// CanHandle determines if this parser understands the line's message type
	CanHandle(line string) bool

	// Parse converts the line into a record, or returns false to drop it
	Parse(line string) (entity.TelemetryRecord, bool)
}

// MessageRouter routes feed lines to the parser for their message type
type MessageRouter interface {
	// Register registers a parser for a message type
	Register(parser LineParser)

	// GetHandler returns the parser for a given line, or nil
	GetHandler(line string) LineParser
}
