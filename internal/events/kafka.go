package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/logger"
	"github.com/segmentio/kafka-go"
)

var ErrPublisherClosed = errors.New("events: publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events in memory and flushes them to Kafka from a background loop,
// so a slow broker never stalls a checkout. Events still queued when the buffer is full are
// dropped with a warning.
type KafkaPublisher struct {
	writer     messageWriter
	log        *slog.Logger
	queue      chan kafka.Message
	flushTick  time.Duration
	batchSize  int
	writeLimit time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func NewKafkaPublisher(topic string, l *slog.Logger, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, l)
}

func newKafkaPublisher(w messageWriter, l *slog.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		writer:     w,
		log:        logger.OrDefault(l),
		queue:      make(chan kafka.Message, 256),
		flushTick:  time.Second,
		batchSize:  50,
		writeLimit: 5 * time.Second,
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) Publish(_ context.Context, e domain.CheckoutEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.CheckoutID), // checkout id keeps one attempt's events ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}

	select {
	case <-p.closed:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.queue <- msg:
		return nil
	default:
		p.log.Warn("event queue full, dropping event", slog.String("type", string(e.Type)), slog.String("checkout_id", e.CheckoutID))
		return fmt.Errorf("events: queue full, dropped %s", e.Type)
	}
}

// Close stops accepting events, flushes what is queued and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	<-p.done
	return p.writer.Close()
}

func (p *KafkaPublisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushTick)
	defer ticker.Stop()

	batch := make([]kafka.Message, 0, p.batchSize)
	for {
		select {
		case msg := <-p.queue:
			batch = append(batch, msg)
			if len(batch) >= p.batchSize {
				batch = p.flush(batch)
			}
		case <-ticker.C:
			batch = p.flush(batch)
		case <-p.closed:
			for {
				select {
				case msg := <-p.queue:
					batch = append(batch, msg)
				default:
					p.flush(batch)
					return
				}
			}
		}
	}
}

func (p *KafkaPublisher) flush(batch []kafka.Message) []kafka.Message {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.writeLimit)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		p.log.Error("failed to publish events", slog.Int("count", len(batch)), slog.Any("error", err))
	}
	return batch[:0]
}
