package queue

// The background consumer listens to the lifecycle queues and appends a
// single-line audit record per event to logs/audit.log.

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

// StartAuditConsumer connects to RabbitMQ, declares the durable lifecycle
// queues and consumes them into the audit log. It runs a reconnect loop
// and keeps running across broker restarts; processing errors are logged
// and the offending message rejected without requeueing so the server
// never spins on a poison message.
func StartAuditConsumer() error {
	url := brokerURL()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
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
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}

	for _, q := range []string{nodeQueueName, containerQueueName} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
	}

	nodeMsgs, err := ch.Consume(nodeQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", nodeQueueName, err)
	}
	containerMsgs, err := ch.Consume(containerQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", containerQueueName, err)
	}

	for {
		select {
		case d, ok := <-nodeMsgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			handle(d, auditNodeRegistered)
		case d, ok := <-containerMsgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			handle(d, auditContainerCreated)
		}
	}
}

func handle(d amqp.Delivery, fn func([]byte) error) {
	if err := fn(d.Body); err != nil {
		log.Printf("audit-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false) // reject, do not requeue
		return
	}
	_ = d.Ack(false)
}

func auditNodeRegistered(body []byte) error {
	var ev NodeRegisteredEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Node registered | region=%s | ip=%s | port=%s | host=%q\n",
		ev.RegisteredAt, ev.RegionName, ev.IPAddress, ev.HostPort, ev.HostName)
	return appendAuditLine(line)
}

func auditContainerCreated(body []byte) error {
	var ev ContainerCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Container created | user=%s | container_id=%s | region=%s\n",
		ev.CreatedAt, ev.UserName, ev.ContainerID, ev.RegionName)
	return appendAuditLine(line)
}

func appendAuditLine(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "audit.log")
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
