package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"

	"checkpoint/pkg/platform/circuit"
)

// KafkaSink delivers audit events to a Kafka topic. Records are keyed by
// user so one user's trail stays ordered within a partition.
//
// A breaker guards the broker: after a run of produce failures the sink
// drops events instead of stalling the publisher, and resumes once a
// produce succeeds again. The durable store is the system of record; the
// topic is a feed.
type KafkaSink struct {
	client  *kgo.Client
	breaker *circuit.Breaker
	dropped atomic.Uint64
}

// probeInterval is how many events are dropped between probes while the
// circuit is open.
const probeInterval = 16

// NewKafkaSink connects a producer to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &KafkaSink{
		client:  client,
		breaker: circuit.New("audit-kafka", circuit.WithFailureThreshold(5)),
	}, nil
}

func (s *KafkaSink) Deliver(ctx context.Context, event Event) error {
	// While open, drop fast and let one in every probeInterval events probe
	// the broker; a successful probe closes the circuit.
	if s.breaker.IsOpen() && s.dropped.Add(1)%probeInterval != 0 {
		return fmt.Errorf("audit kafka circuit open, event dropped")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.UserID.String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.breaker.RecordFailure()
		return fmt.Errorf("produce audit event: %w", err)
	}
	s.breaker.RecordSuccess()
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
