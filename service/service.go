package service

import (
	"fulfillment/pkg/logger"
	"fulfillment/pkg/notify"
	"fulfillment/storage"
)

// New wires the engine over one storage backend.
func New(stg storage.IStorage, dispatcher notify.Dispatcher, log logger.ILogger) *Coordinator {
	return NewCoordinator(stg, dispatcher, log.With(logger.String("component", "fulfillment")))
}
