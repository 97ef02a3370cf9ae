package moderator

import (
	"github.com/goto/salt/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pipewatch_change_events_dropped_total",
	Help: "change events dropped because the publish buffer was full or the event could not be encoded",
})

// Event is a change event, Bytes is the message published to the stream
type Event interface {
	Bytes() ([]byte, error)
}

type Handler interface {
	HandleEvent(Event)
}

// EventHandler hands encoded events to the publishing worker without blocking the caller
type EventHandler struct {
	messageChan chan<- []byte
	logger      log.Logger
}

func NewEventHandler(messageChan chan<- []byte, logger log.Logger) *EventHandler {
	return &EventHandler{
		messageChan: messageChan,
		logger:      logger,
	}
}

func (e EventHandler) HandleEvent(event Event) {
	bytes, err := event.Bytes()
	if err != nil {
		droppedEvents.Inc()
		e.logger.Error("error converting event to bytes: %v", err)
		return
	}

	select {
	case e.messageChan <- bytes:
	default:
		droppedEvents.Inc()
		e.logger.Warn("publish buffer is full, dropping %T", event)
	}
}

// NoOpHandler drops events, used when no publisher is configured
type NoOpHandler struct{}

func (NoOpHandler) HandleEvent(Event) {}
