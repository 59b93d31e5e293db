// Package events publishes cart lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const TypeCartMerged = "cart.merged"

type MergedLine struct {
	BookID   int64 `json:"bookId"`
	Quantity int   `json:"quantity"`
}

// CartMerged is emitted once a guest cart has been committed into a user cart.
type CartMerged struct {
	Type       string       `json:"type"`
	UserID     int64        `json:"userId"`
	GuestLines int          `json:"guestLines"`
	Lines      []MergedLine `json:"lines"`
	TS         int64        `json:"ts"`
}

type Publisher interface {
	CartMerged(ctx context.Context, e CartMerged) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) CartMerged(context.Context, CartMerged) error { return nil }
func (Nop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by user id, so one user's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher accepts a comma separated broker list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	var addrs []string
	for _, a := range strings.Split(brokers, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	})
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

func (p *KafkaPublisher) CartMerged(ctx context.Context, e CartMerged) error {
	e.Type = TypeCartMerged
	if e.TS == 0 {
		e.TS = p.now().UnixMilli()
	}
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(e.UserID, 10)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
