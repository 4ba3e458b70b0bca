package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartBookingConsumer connects to RabbitMQ, declares both booking
// queues (durable) and consumes them, appending one human-readable line
// per message to logs/booking.log. It runs a reconnect loop with capped
// exponential backoff and never returns in normal operation; processing
// errors are logged and the offending message rejected without requeue.
func StartBookingConsumer(url string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("booking-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{QueueBookingConfirmed, QueueBookingCancelled} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	confirmed, err := ch.Consume(QueueBookingConfirmed, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueBookingConfirmed, err)
	}
	cancelled, err := ch.Consume(QueueBookingCancelled, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", QueueBookingCancelled, err)
	}

	for {
		select {
		case d, ok := <-confirmed:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, QueueBookingConfirmed)
		case d, ok := <-cancelled:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			settle(d, QueueBookingCancelled)
		}
	}
}

func settle(d amqp.Delivery, queueName string) {
	if err := handleMessage(queueName, d.Body); err != nil {
		log.Printf("booking-consumer: handle %s message failed: %v", queueName, err)
		// Reject without requeue so a poison message cannot loop.
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func handleMessage(queueName string, body []byte) error {
	var line string
	switch queueName {
	case QueueBookingConfirmed:
		var ev BookingConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | reference=%s | user_id=%d | event_id=%d | event=%q | seats=%d | total=%d cents\n",
			ev.ConfirmedAt, ev.BookingID, ev.Reference, ev.UserID, ev.EventID, ev.EventTitle, ev.SeatCount, ev.TotalAmountCents)
	case QueueBookingCancelled:
		var ev BookingCancelledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = fmt.Sprintf("[%s] Booking cancelled | booking_id=%d | reference=%s | user_id=%d | event_id=%d | event=%q | seats=%d | total=%d cents\n",
			ev.CancelledAt, ev.BookingID, ev.Reference, ev.UserID, ev.EventID, ev.EventTitle, ev.SeatCount, ev.TotalAmountCents)
	default:
		return fmt.Errorf("unknown queue %s", queueName)
	}
	return appendAuditLine(line)
}

func appendAuditLine(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "booking.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
