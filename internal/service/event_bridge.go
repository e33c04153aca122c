package service

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/blockhaven/ticketd/internal/events"
)

// Topics for the external event feed. Chat and UI renderers subscribe here
// and turn the payloads into player-facing copy; this side ships event kind
// and parameters only.
const (
	TopicTicketCreated       = "ticketd/tickets/created"
	TopicTicketStatusChanged = "ticketd/tickets/status_changed"
	TopicTicketMessageAdded  = "ticketd/tickets/message_added"
	TopicTicketDeleted       = "ticketd/tickets/deleted"
)

// EventBridge mirrors ticket events onto an MQTT broker for out-of-process
// consumers. Publishing is fire-and-forget: a broker outage never affects
// the mutation that produced the event.
type EventBridge struct {
	dispatcher events.Dispatcher
	client     mqtt.Client
	logger     *zap.Logger
}

// NewEventBridge creates the bridge around an already connected client.
func NewEventBridge(dispatcher events.Dispatcher, client mqtt.Client, logger *zap.Logger) *EventBridge {
	return &EventBridge{
		dispatcher: dispatcher,
		client:     client,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (b *EventBridge) RegisterHandlers() {
	if b.dispatcher == nil || b.client == nil {
		return
	}
	b.dispatcher.Subscribe(events.EventTicketCreated, b.forward(TopicTicketCreated))
	b.dispatcher.Subscribe(events.EventTicketStatusChanged, b.forward(TopicTicketStatusChanged))
	b.dispatcher.Subscribe(events.EventTicketMessageAdded, b.forward(TopicTicketMessageAdded))
	b.dispatcher.Subscribe(events.EventTicketDeleted, b.forward(TopicTicketDeleted))
}

func (b *EventBridge) forward(topic string) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		b.publish(topic, event)
		return nil
	}
}

func (b *EventBridge) publish(topic string, event events.Event) {
	if !b.client.IsConnected() {
		b.logger.Debug("mqtt not connected, skipping publish", zap.String("topic", topic))
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("event marshal failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	token := b.client.Publish(topic, 1, false, body)
	token.WaitTimeout(3 * time.Second)
	if err := token.Error(); err != nil {
		b.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
