package kafka

import (
	"context"
	"encoding/json"
	"time"

	"ms-reservation/internal/models"
	"ms-reservation/internal/utils"

	"github.com/segmentio/kafka-go"
)

// Event is the envelope every booking lifecycle message travels in.
type Event struct {
	EventID   string      `json:"event_id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	PNR       string      `json:"pnr"`
	Payload   interface{} `json:"payload"`
}

// PromotionPayload carries the details of one passenger moving up.
type PromotionPayload struct {
	PassengerID int64                `json:"passenger_id"`
	From        models.BookingStatus `json:"from"`
	To          models.BookingStatus `json:"to"`
}

type Producer struct {
	created   *kafka.Writer
	cancelled *kafka.Writer
	promoted  *kafka.Writer
}

func NewProducer(brokers []string, createdTopic, cancelledTopic, promotedTopic string) *Producer {
	writer := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		created:   writer(createdTopic),
		cancelled: writer(cancelledTopic),
		promoted:  writer(promotedTopic),
	}
}

func (p *Producer) publish(ctx context.Context, w *kafka.Writer, eventType, pnr string, payload interface{}) error {
	msgBytes, err := json.Marshal(Event{
		EventID:   utils.GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		PNR:       pnr,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(pnr),
		Value: msgBytes,
	})
}

// PublishBookingCreated streams the booking creation event to Kafka.
func (p *Producer) PublishBookingCreated(ctx context.Context, result *models.BookingResult) error {
	return p.publish(ctx, p.created, "booking.created", result.PNR, result)
}

// PublishBookingCancelled streams the cancellation event to Kafka.
func (p *Producer) PublishBookingCancelled(ctx context.Context, result *models.CancellationResult) error {
	return p.publish(ctx, p.cancelled, "booking.cancelled", result.PNR, result)
}

// PublishPassengerPromoted streams one promotion step to Kafka.
func (p *Producer) PublishPassengerPromoted(ctx context.Context, pnr string, passengerID int64, from, to models.BookingStatus) error {
	return p.publish(ctx, p.promoted, "passenger.promoted", pnr, PromotionPayload{
		PassengerID: passengerID,
		From:        from,
		To:          to,
	})
}

func (p *Producer) Close() error {
	for _, w := range []*kafka.Writer{p.created, p.cancelled, p.promoted} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}

// NoopPublisher satisfies the booking service's publisher when Kafka is
// disabled, e.g. in local development.
type NoopPublisher struct{}

func (NoopPublisher) PublishBookingCreated(ctx context.Context, result *models.BookingResult) error {
	return nil
}

func (NoopPublisher) PublishBookingCancelled(ctx context.Context, result *models.CancellationResult) error {
	return nil
}

func (NoopPublisher) PublishPassengerPromoted(ctx context.Context, pnr string, passengerID int64, from, to models.BookingStatus) error {
	return nil
}
