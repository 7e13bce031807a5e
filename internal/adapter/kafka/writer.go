package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/streamflow-sync/internal/config"
	"github.com/couchcryptid/streamflow-sync/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const sourceUSGS = "usgs"

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces committed observation rows to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer messageWriter
	runID  string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher creates a Kafka producer for the configured observation topic.
// runID is attached to every message so consumers can group a run's output.
func NewPublisher(cfg *config.Config, runID string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, runID: runID, logger: logger, now: time.Now}
}

// observationMessage is the JSON value of a published observation.
type observationMessage struct {
	RiverID   string `json:"river_id"`
	Timestamp string `json:"timestamp"`
	Discharge string `json:"discharge"`
}

// Publish writes one message per row, keyed by river ID so a river's
// observations stay in one partition, in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, rows []domain.Row) error {
	if len(rows) == 0 {
		return nil
	}
	syncedAt := p.now().UTC()
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i], p.runID, syncedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d observations: %w", len(msgs), err)
	}
	p.logger.Debug("observations published", "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a row into a Kafka message.
func serializeToMessage(row domain.Row, runID string, syncedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(observationMessage{
		RiverID:   row.RiverID,
		Timestamp: row.FormattedTimestamp(),
		Discharge: row.Discharge,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.RiverID),
		Value: data,
		Time:  row.Timestamp,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(sourceUSGS)},
			{Key: "synced_at", Value: []byte(syncedAt.Format(time.RFC3339))},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
