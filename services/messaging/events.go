package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// ErrInvalidPayload marks an inbound message that cannot be decoded.
var ErrInvalidPayload = errors.New("invalid event payload")

// CatalogRequestEvent asks the catalog to create or alter a profile's table.
type CatalogRequestEvent struct {
	CatalogExecutionID int64     `json:"catalogExecutionId"`
	ConnectionID       int64     `json:"connectionId"`
	EventID            string    `json:"eventId"`
	EventRequest       string    `json:"eventRequest"`
	EventTime          time.Time `json:"eventTime"`
	ProfileID          int64     `json:"profileId"`
}

// CatalogResultEvent reports the outcome of a CatalogRequestEvent.
type CatalogResultEvent struct {
	CatalogExecutionID int64
	EventResponse      string
	Message            string
	ProfileID          int64
}

// ProfileUpdateEvent flags a profile's downstream validation state.
type ProfileUpdateEvent struct {
	ProfileID     int64
	EventResponse string
}

// idField reads an id sent either as a JSON number or a numeric string.
func idField(body []byte, path string) (int64, error) {
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return 0, fmt.Errorf("%w: %s missing", ErrInvalidPayload, path)
	}
	id, err := cast.ToInt64E(res.Value())
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s=%s", ErrInvalidPayload, path, res.Raw)
	}
	return id, nil
}

// DecodeCatalogResult reads a catalog result message.
func DecodeCatalogResult(body []byte) (CatalogResultEvent, error) {
	if !gjson.ValidBytes(body) {
		return CatalogResultEvent{}, fmt.Errorf("%w: not JSON", ErrInvalidPayload)
	}
	executionID, err := idField(body, "catalogExecutionId")
	if err != nil {
		return CatalogResultEvent{}, err
	}
	profileID, err := idField(body, "profileId")
	if err != nil {
		return CatalogResultEvent{}, err
	}
	return CatalogResultEvent{
		CatalogExecutionID: executionID,
		EventResponse:      gjson.GetBytes(body, "eventResponse").String(),
		Message:            gjson.GetBytes(body, "message").String(),
		ProfileID:          profileID,
	}, nil
}

// DecodeProfileUpdate reads a profile validation message.
func DecodeProfileUpdate(body []byte) (ProfileUpdateEvent, error) {
	if !gjson.ValidBytes(body) {
		return ProfileUpdateEvent{}, fmt.Errorf("%w: not JSON", ErrInvalidPayload)
	}
	profileID, err := idField(body, "profileId")
	if err != nil {
		return ProfileUpdateEvent{}, err
	}
	return ProfileUpdateEvent{
		ProfileID:     profileID,
		EventResponse: gjson.GetBytes(body, "eventResponse").String(),
	}, nil
}

// CatalogPublisher emits catalog requests.
type CatalogPublisher interface {
	PublishCatalogRequest(ctx context.Context, event CatalogRequestEvent) error
}

// CatalogEventPublisher sends catalog requests to a fixed exchange and routing key.
type CatalogEventPublisher struct {
	publisher  Publisher
	exchange   string
	routingKey string
}

// NewCatalogEventPublisher binds publisher to exchange and routingKey.
func NewCatalogEventPublisher(publisher Publisher, exchange, routingKey string) *CatalogEventPublisher {
	return &CatalogEventPublisher{publisher: publisher, exchange: exchange, routingKey: routingKey}
}

// PublishCatalogRequest encodes event as JSON and publishes it.
func (p *CatalogEventPublisher) PublishCatalogRequest(ctx context.Context, event CatalogRequestEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode catalog request: %w", err)
	}
	return p.publisher.Publish(ctx, p.exchange, p.routingKey, body)
}
