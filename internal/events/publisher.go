package events

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const Exchange = "dmv.events"

type EventType string

const (
	TestCompleted     EventType = "test.completed"
	TrainingCompleted EventType = "training.completed"
)

// Event is the payload external consumers (email, analytics) receive.
type Event struct {
	EventType    EventType `json:"event_type"`
	UserID       string    `json:"user_id"`
	State        string    `json:"state,omitempty"`
	TestNumber   int       `json:"test_number,omitempty"`
	Score        int       `json:"score,omitempty"`
	Total        int       `json:"total,omitempty"`
	BestScore    int       `json:"best_score,omitempty"`
	AttemptCount int       `json:"attempt_count,omitempty"`
	Passed       bool      `json:"passed,omitempty"`
	SetID        string    `json:"set_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(event *Event) error
	Close() error
}

type EventPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	mu      sync.Mutex
	enabled bool
}

// NewEventPublisher connects to RabbitMQ and declares the topic exchange.
// An empty URL yields a publisher that only logs.
func NewEventPublisher(amqpURL string) (*EventPublisher, error) {
	if amqpURL == "" {
		log.Println("[events] AMQP_URL is empty, event publishing is disabled")
		return &EventPublisher{}, nil
	}

	conn, err := amqp091.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Printf("[events] publishing to exchange %s", Exchange)
	return &EventPublisher{conn: conn, channel: channel, enabled: true}, nil
}

func (p *EventPublisher) Publish(event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if !p.enabled {
		log.Printf("[events] disabled, skipping %s for user %s", event.EventType, event.UserID)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// amqp091 channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		Exchange,
		string(event.EventType),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.Timestamp,
			Body:         body,
			Headers: amqp091.Table{
				"event_type": string(event.EventType),
				"user_id":    event.UserID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		log.Printf("WARN: [events] close channel: %v", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("close RabbitMQ connection: %w", err)
	}
	return nil
}

// MockPublisher records events in memory.
type MockPublisher struct {
	mu     sync.Mutex
	Events []Event
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, *event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) Published() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.Events...)
}
