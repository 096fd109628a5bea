package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/partner-dispatch/internal/models"
)

const (
	TypeRequestCreated = "request_created"
	TypeRequestUpdated = "request_updated"
)

// Event is the change-feed record that drives the dispatcher. Creation
// and rejection-set growth both land on the same topic; the orchestrator
// decides what each one means.
type Event struct {
	Type      string      `json:"type"`
	Kind      models.Kind `json:"kind"`
	RequestID string      `json:"request_id"`
	At        time.Time   `json:"at"`
}

// Producer writes lifecycle events to the dispatch topic and location
// reports to the heartbeat topic, keyed so one request's or partner's
// messages stay ordered on one partition.
type Producer struct {
	dispatch   *kafka.Writer
	heartbeats *kafka.Writer
}

func NewProducer(brokers []string, dispatchTopic, heartbeatTopic string) *Producer {
	return &Producer{
		dispatch:   kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: dispatchTopic, Balancer: &kafka.LeastBytes{}}),
		heartbeats: kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: heartbeatTopic, Balancer: &kafka.LeastBytes{}}),
	}
}

func publish(ctx context.Context, w *kafka.Writer, key string, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (p *Producer) RequestCreated(ctx context.Context, kind models.Kind, requestID string) error {
	return publish(ctx, p.dispatch, requestID, Event{Type: TypeRequestCreated, Kind: kind, RequestID: requestID, At: time.Now()})
}

func (p *Producer) RequestUpdated(ctx context.Context, kind models.Kind, requestID string) error {
	return publish(ctx, p.dispatch, requestID, Event{Type: TypeRequestUpdated, Kind: kind, RequestID: requestID, At: time.Now()})
}

// PublishHeartbeat mirrors a partner location report to the heartbeat
// topic for downstream consumers.
func (p *Producer) PublishHeartbeat(ctx context.Context, hb models.Heartbeat) error {
	return publish(ctx, p.heartbeats, hb.PartnerID, hb)
}

func (p *Producer) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.dispatch, p.heartbeats} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
