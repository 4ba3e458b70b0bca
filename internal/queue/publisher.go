package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// Publisher sends booking lifecycle events to RabbitMQ. Each publish
// dials its own short-lived connection and marks the message persistent.
// Failures are logged and swallowed; a broker outage must never fail the
// booking that triggered the message.
type Publisher struct {
	url string
}

// NewPublisher returns a publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// BookingConfirmed publishes to the booking.confirmed queue.
func (p *Publisher) BookingConfirmed(d model.BookingDetail) {
	p.publish(QueueBookingConfirmed, BookingConfirmedEvent{
		BookingID:        d.ID,
		Reference:        d.Reference,
		UserID:           d.UserID,
		EventID:          d.EventID,
		EventTitle:       d.EventTitle,
		SeatCount:        d.SeatCount,
		TotalAmountCents: d.TotalAmountCents,
		ConfirmedAt:      d.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// BookingCancelled publishes to the booking.cancelled queue.
func (p *Publisher) BookingCancelled(d model.BookingDetail) {
	at := time.Now().UTC()
	if d.CancelledAt != nil {
		at = d.CancelledAt.UTC()
	}
	p.publish(QueueBookingCancelled, BookingCancelledEvent{
		BookingID:        d.ID,
		Reference:        d.Reference,
		UserID:           d.UserID,
		EventID:          d.EventID,
		EventTitle:       d.EventTitle,
		SeatCount:        d.SeatCount,
		TotalAmountCents: d.TotalAmountCents,
		CancelledAt:      at.Format(time.RFC3339),
	})
}

func (p *Publisher) publish(queueName string, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish to %s failed: %v", queueName, err)
	}
}
