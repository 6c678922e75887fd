package router

import (
	"fmt"

	"adsb-ingest-service/internal/usecase"
	"adsb-ingest-service/pkg/logger"
)

// MessageRouter routes feed lines to parsers based on their message type marker
type MessageRouter struct {
	handlers []usecase.LineParser
	logger   logger.Logger
}

// NewMessageRouter creates a new message router
func NewMessageRouter(logger logger.Logger) *MessageRouter {
	return &MessageRouter{
		handlers: make([]usecase.LineParser, 0),
		logger:   logger,
	}
}

// Register registers a parser; earlier registrations win on overlap
func (r *MessageRouter) Register(handler usecase.LineParser) {
	r.handlers = append(r.handlers, handler)
	r.logger.Info("Registered line parser", "parser", fmt.Sprintf("%T", handler))
}

// GetHandler returns the parser for a given line, nil when no parser accepts it
func (r *MessageRouter) GetHandler(line string) usecase.LineParser {
	for _, handler := range r.handlers {
		if handler.CanHandle(line) {
			return handler
		}
	}
	return nil
}
