package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	domain "github.com/showcase/api/internal/domain"
)

// Message attribute keys set on every catalog event.
const (
	AttrEventType = "eventType"
	AttrCatalogID = "catalogId"
	AttrUserID    = "userId"
)

// CatalogEventMessage is the JSON body carried by catalog event messages.
type CatalogEventMessage struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	CatalogID    string    `json:"catalogId"`
	UserID       string    `json:"userId"`
	Slug         string    `json:"slug,omitempty"`
	BusinessName string    `json:"businessName,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// EncodeCatalogEvent converts a domain event into its wire form.
func EncodeCatalogEvent(event domain.CatalogEvent) CatalogEventMessage {
	return CatalogEventMessage{
		ID:           event.ID,
		Type:         string(event.Type),
		CatalogID:    event.CatalogID,
		UserID:       event.UserID,
		Slug:         event.Slug,
		BusinessName: event.BusinessName,
		OccurredAt:   event.OccurredAt.UTC(),
	}
}

// DecodeCatalogEvent parses a message body produced by the publisher.
func DecodeCatalogEvent(data []byte) (domain.CatalogEvent, error) {
	var msg CatalogEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.CatalogEvent{}, fmt.Errorf("decode catalog event: %w", err)
	}
	if strings.TrimSpace(msg.CatalogID) == "" || strings.TrimSpace(msg.UserID) == "" {
		return domain.CatalogEvent{}, errors.New("decode catalog event: catalogId and userId are required")
	}
	eventType := domain.CatalogEventType(msg.Type)
	if !eventType.Valid() {
		return domain.CatalogEvent{}, fmt.Errorf("decode catalog event: unknown type %q", msg.Type)
	}
	return domain.CatalogEvent{
		ID:           msg.ID,
		Type:         eventType,
		CatalogID:    msg.CatalogID,
		UserID:       msg.UserID,
		Slug:         msg.Slug,
		BusinessName: msg.BusinessName,
		OccurredAt:   msg.OccurredAt,
	}, nil
}

// PubSubCatalogEventPublisher publishes catalog change events to a Pub/Sub topic.
type PubSubCatalogEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubCatalogEventPublisher constructs a Pub/Sub backed catalog event publisher.
func NewPubSubCatalogEventPublisher(topic *pubsub.Topic) (*PubSubCatalogEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub catalog publisher: topic is required")
	}
	return &PubSubCatalogEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishCatalogEvent sends the event and waits for the server-assigned message id.
// Messages are ordered per catalog so a subscriber sees create before update.
func (p *PubSubCatalogEventPublisher) PublishCatalogEvent(ctx context.Context, event domain.CatalogEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub catalog publisher: not initialised")
	}

	data, err := p.marshal(EncodeCatalogEvent(event))
	if err != nil {
		return "", fmt.Errorf("marshal catalog event: %w", err)
	}

	attrs := make(map[string]string, 3)
	setAttr(attrs, AttrEventType, string(event.Type))
	setAttr(attrs, AttrCatalogID, event.CatalogID)
	setAttr(attrs, AttrUserID, event.UserID)

	msg := &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = event.CatalogID
	}

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return "", fmt.Errorf("publish catalog event: %w", err)
	}
	return id, nil
}

// Ping verifies the topic exists. Used by readiness checks.
func (p *PubSubCatalogEventPublisher) Ping(ctx context.Context) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub catalog publisher: not initialised")
	}
	ok, err := p.topic.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pubsub topic %s not found", p.topic.ID())
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubCatalogEventPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
