// Command notifier tails the booking event topics and dispatches
// passenger notifications. The dispatch itself is a log line for now;
// the SMS/email gateway hangs off handleEvent when it lands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ms-reservation/internal/config"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", "No .env file found, using environment variables")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	groupID := os.Getenv("NOTIFIER_GROUP_ID")
	if groupID == "" {
		groupID = "reservation-notifier"
	}

	topics := []string{
		cfg.Kafka.Topics.BookingCreated,
		cfg.Kafka.Topics.BookingCancelled,
		cfg.Kafka.Topics.PassengerPromoted,
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topic, groupID)
		defer consumer.Close()

		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			log.LogKafka("CONSUME", topic, "listening")
			consumer.Start(ctx, func(event kafka.Event) {
				handleEvent(log, event)
			})
		}(topic)
	}

	log.Info("NOTIFIER", fmt.Sprintf("Consuming %d topics from %v", len(topics), cfg.Kafka.Brokers))
	wg.Wait()
	log.Info("NOTIFIER", "Shutdown complete")
}

func handleEvent(log *logger.Logger, event kafka.Event) {
	switch event.Type {
	case "booking.created":
		log.LogBooking("NOTIFY_CREATED", event.PNR, "booking confirmation notification queued")
	case "booking.cancelled":
		log.LogBooking("NOTIFY_CANCELLED", event.PNR, "cancellation notification queued")
	case "passenger.promoted":
		log.LogBooking("NOTIFY_PROMOTED", event.PNR, "promotion notification queued")
	default:
		log.Warn("NOTIFIER", fmt.Sprintf("Ignoring unknown event type %q (id %s)", event.Type, event.EventID))
	}
}
