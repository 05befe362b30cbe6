package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/courtcaller/court-booking-engine/internal/model"
)

const resultQueueName = "payment.result"

// PaymentResolver consumes an out-of-band payment result.  Implemented
// by the payment saga; resolution must be idempotent because the
// broker may redeliver.
type PaymentResolver interface {
	Resolve(ctx context.Context, bookingID uuid.UUID, succeeded bool, reference string) (model.BookingStatus, error)
}

// StartPaymentResultConsumer connects to RabbitMQ, declares the
// payment.result queue (durable), and feeds each result into the
// resolver.  It runs a reconnect loop with capped backoff and keeps
// running across broker restarts until ctx is cancelled; messages that
// cannot be decoded are rejected without requeue so a poison message
// never loops.
func StartPaymentResultConsumer(ctx context.Context, resolver PaymentResolver) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			log.Println("payment-consumer: stopped")
			return
		}
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("payment-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			sleepCtx(ctx, backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		// Closing the connection on cancellation unblocks the
		// delivery loop inside consumeResults.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()
		err = consumeResults(conn, resolver)
		close(done)
		_ = conn.Close()
		if err != nil && ctx.Err() == nil {
			log.Printf("payment-consumer: consume loop ended: %v; reconnecting", err)
			sleepCtx(ctx, 2*time.Second)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func consumeResults(conn *amqp.Connection, resolver PaymentResolver) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("payment-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(resultQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(resultQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleResult(d.Body, resolver); err != nil {
			log.Printf("payment-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleResult(body []byte, resolver PaymentResolver) error {
	var ev PaymentResultEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	bookingID, err := uuid.Parse(ev.BookingID)
	if err != nil {
		return fmt.Errorf("parse booking id %q: %w", ev.BookingID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := resolver.Resolve(ctx, bookingID, ev.Succeeded, ev.Reference)
	if err != nil {
		return fmt.Errorf("resolve booking %s: %w", bookingID, err)
	}
	log.Printf("payment-consumer: booking %s resolved to %s (succeeded=%t)", bookingID, status, ev.Succeeded)
	return nil
}
