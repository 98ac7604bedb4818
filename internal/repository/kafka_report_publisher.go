package repository

import (
	"context"
	"fmt"

	"FinForge/internal/domain/models"
	pkgkafka "FinForge/pkg/kafka"
	applogger "FinForge/pkg/logger"
)

// KafkaReportPublisher broadcasts run reports so downstream research jobs
// can react to fresh datasets without polling the registry.
type KafkaReportPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

// SetLogger injects a structured logger.
func (p *KafkaReportPublisher) SetLogger(l *applogger.Logger) { p.l = l }

// PublishReport sends the report keyed by destination so reports for the
// same dataset land on one partition in order.
func (p *KafkaReportPublisher) PublishReport(ctx context.Context, report *models.RunReport) error {
	if report == nil {
		return fmt.Errorf("publish report: nil report")
	}
	key := []byte(report.Destination)
	if err := p.producer.Publish(ctx, p.topic, key, report); err != nil {
		if p.l != nil {
			p.l.Error("report publish error",
				applogger.String("topic", p.topic),
				applogger.String("destination", report.Destination),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish report: %w", err)
	}
	if p.l != nil {
		p.l.Debug("report published",
			applogger.String("topic", p.topic),
			applogger.String("destination", report.Destination),
			applogger.String("status", report.Status),
		)
	}
	return nil
}

func (p *KafkaReportPublisher) Close() error {
	return p.producer.Close()
}
