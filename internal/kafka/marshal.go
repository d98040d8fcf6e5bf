package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
	HeaderEventID      = "x-event-id"
)

// EnvelopeMessage builds the broker message for an encoded envelope, lifting
// the routing fields into headers so consumers can filter without decoding.
func EnvelopeMessage(topic string, key, value []byte) (kafka.Message, error) {
	var env shop.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return kafka.Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(env.EventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
			{Key: HeaderEventID, Value: []byte(env.EventID)},
		},
	}, nil
}

func DecodeEnvelope(m kafka.Message) (shop.Envelope, error) {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope at %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return env, nil
}

func Header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
