// Package stream publishes accident events onto a Kafka topic so dispatch
// and analytics consumers see incidents the moment they are persisted.
// Publication is best-effort and disabled entirely when KAFKA_BROKERS is
// unset.
package stream

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// AccidentEvent is the message body published per created report.
type AccidentEvent struct {
	ReportID   uint    `json:"report_id"`
	VictimID   uint    `json:"victim_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Speed      float64 `json:"speed"`
	IsDrowsy   bool    `json:"is_drowsy"`
	IsOversped bool    `json:"is_oversped"`
}

type publisher struct {
	producer *kafka.Producer
	topic    string
	wg       sync.WaitGroup
}

var (
	mu     sync.Mutex
	active *publisher
)

// Init connects the publisher when KAFKA_BROKERS is configured. Returns
// false when streaming is disabled; that is not an error.
func Init() (bool, error) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		logrus.Info("stream: KAFKA_BROKERS not set, accident streaming disabled")
		return false, nil
	}
	topic := os.Getenv("KAFKA_ACCIDENT_TOPIC")
	if topic == "" {
		topic = "accident-events"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          50,
	})
	if err != nil {
		return false, fmt.Errorf("stream: failed to create producer: %w", err)
	}

	p := &publisher{producer: producer, topic: topic}
	p.wg.Add(1)
	go p.handleDeliveryReports()

	mu.Lock()
	active = p
	mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"brokers": brokers,
		"topic":   topic,
	}).Info("stream: accident event publisher initialized")
	return true, nil
}

func (p *publisher) handleDeliveryReports() {
	defer p.wg.Done()
	for e := range p.producer.Events() {
		m, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if m.TopicPartition.Error != nil {
			logrus.WithError(m.TopicPartition.Error).Warn("stream: accident event delivery failed")
		}
	}
}

// PublishAccident enqueues one event. A full queue or serialization failure
// is logged and dropped; report persistence never depends on the stream.
func PublishAccident(event AccidentEvent) {
	mu.Lock()
	p := active
	mu.Unlock()
	if p == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Warn("stream: failed to serialize accident event")
		return
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(fmt.Sprintf("%d", event.VictimID)),
		Value: payload,
	}, nil)
	if err != nil {
		logrus.WithError(err).Warn("stream: failed to enqueue accident event")
	}
}

// Close flushes pending events and shuts the publisher down.
func Close() {
	mu.Lock()
	p := active
	active = nil
	mu.Unlock()
	if p == nil {
		return
	}

	remaining := p.producer.Flush(int((10 * time.Second).Milliseconds()))
	if remaining > 0 {
		logrus.Warnf("stream: %d accident events still queued after flush", remaining)
	}
	p.producer.Close()
	p.wg.Wait()
}
