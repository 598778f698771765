package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/protocol"
)

// ReportPublisher announces finished report jobs on a Kafka topic. Events
// are keyed by report id so all events of one job land on one partition.
type ReportPublisher struct {
	writer *kafka.Writer
}

// NewReportPublisher creates a publisher writing to topic
func NewReportPublisher(brokers []string, topic string) *ReportPublisher {
	return &ReportPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishReportEvent encodes and writes one report event
func (p *ReportPublisher) PublishReportEvent(ctx context.Context, event *protocol.ReportEvent) error {
	data, err := protocol.EncodeReportEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode report event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ReportID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to write report event %s: %w", event.ReportID, err)
	}
	return nil
}

// Close flushes and closes the publisher
func (p *ReportPublisher) Close() error {
	return p.writer.Close()
}

// Delivery is one fetched observation message. When the payload cannot be
// decoded Observation is nil and Err says why; the message still has to be
// committed so it does not block its partition.
type Delivery struct {
	Message     kafka.Message
	Observation *protocol.ParsedObservation
	Err         error
}

func decodeDelivery(msg kafka.Message) Delivery {
	d := Delivery{Message: msg}

	obsMsg, err := protocol.DecodeObservationMessage(msg.Value)
	if err != nil {
		d.Err = fmt.Errorf("failed to decode message: %w", err)
		return d
	}

	parsed, err := obsMsg.Parse()
	if err != nil {
		d.Err = fmt.Errorf("failed to parse observation: %w", err)
		return d
	}

	d.Observation = parsed
	return d
}

// ObservationConsumer reads store status observations as a member of a
// consumer group. Offsets are committed explicitly.
type ObservationConsumer struct {
	reader *kafka.Reader
}

// NewObservationConsumer creates a consumer for topic in groupID. A new
// group starts from the oldest retained observation.
func NewObservationConsumer(brokers []string, topic, groupID string) *ObservationConsumer {
	return &ObservationConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: 0,
			StartOffset:    kafka.FirstOffset,
		}),
	}
}

// Fetch blocks for the next observation. A returned error means nothing was
// fetched; decode failures are reported in Delivery.Err instead.
func (c *ObservationConsumer) Fetch(ctx context.Context) (Delivery, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return Delivery{}, fmt.Errorf("failed to fetch observation: %w", err)
	}
	return decodeDelivery(msg), nil
}

// Commit marks deliveries as processed
func (c *ObservationConsumer) Commit(ctx context.Context, deliveries ...Delivery) error {
	msgs := make([]kafka.Message, len(deliveries))
	for i, d := range deliveries {
		msgs[i] = d.Message
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit offsets: %w", err)
	}
	return nil
}

// Close leaves the group and closes the reader
func (c *ObservationConsumer) Close() error {
	return c.reader.Close()
}

// Stats returns reader statistics
func (c *ObservationConsumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// EnsureTopic creates topic through the cluster controller. An existing
// topic is not an error.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions, replication int) error {
	if len(brokers) == 0 {
		return errors.New("no brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find controller: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrl, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial controller %s: %w", addr, err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	})
	if errors.Is(err, kafka.TopicAlreadyExists) {
		logrus.WithField("topic", topic).Debug("Topic already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}

	logrus.WithFields(logrus.Fields{"topic": topic, "partitions": partitions}).Info("Created topic")
	return nil
}
