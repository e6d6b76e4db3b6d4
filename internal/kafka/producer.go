package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Producer publishes to one topic through a buffered inbox drained by a
// single goroutine, so Publish never waits on the broker.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *zap.Logger
	onSent  func(topic string, err error)

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

// OnSent registers a callback run after every write attempt.
func (p *Producer) OnSent(fn func(topic string, err error)) { p.onSent = fn }

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m, ok := <-p.inbox:
						if !ok {
							_ = p.w.Close()
							return
						}
						p.write(m)
					default:
						_ = p.w.Close()
						return
					}
				}
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := p.w.WriteMessages(ctx, m)
	if err != nil {
		p.log.Error("kafka write failed",
			zap.String("topic", p.w.Topic),
			zap.ByteString("key", m.Key),
			zap.Error(err))
	}
	if p.onSent != nil {
		p.onSent(p.w.Topic, err)
	}
}

// Publish enqueues a message, carrying the trace context of ctx in its
// headers. When the inbox is full the message is dropped and logged.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) {
	hs := append([]kafka.Header(nil), headers...)
	otel.GetTextMapPropagator().Inject(ctx, &HeaderCarrier{Headers: &hs})
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: hs,
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("kafka producer closed, dropping message",
			zap.String("topic", p.w.Topic), zap.ByteString("key", key))
		return
	}
	select {
	case p.inbox <- m:
	default:
		p.log.Warn("kafka inbox full, dropping message",
			zap.String("topic", p.w.Topic), zap.ByteString("key", key))
	}
}

// Close the inbox so the goroutine flushes what is left and exits. Later
// Publish calls are dropped.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// Wait until the goroutine has finished.
func (p *Producer) WaitClosed() { <-p.closeCh }
