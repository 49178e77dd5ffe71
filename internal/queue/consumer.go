package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EmailSender delivers a single visit email. Implemented by mailer.Mailer.
type EmailSender interface {
	SendVisitEmail(ev VisitEmailEvent) error
}

// StartEmailConsumer connects to RabbitMQ, declares the visit.email queue
// (durable), and starts consuming. Each message is handed to the sender.
// The function runs a reconnect loop with exponential backoff and keeps
// running across broker outages; failed messages are rejected without
// requeue so a broken payload cannot loop forever.
func StartEmailConsumer(sender EmailSender) error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("email-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeEmailLoop(conn, sender); err != nil {
			log.Printf("email-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeEmailLoop(conn *amqp.Connection, sender EmailSender) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Printf("email-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(emailQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(emailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleEmailMessage(d.Body, sender); err != nil {
			log.Printf("email-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleEmailMessage(body []byte, sender EmailSender) error {
	var ev VisitEmailEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.To == "" {
		return errors.New("event missing recipient")
	}
	if err := sender.SendVisitEmail(ev); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
