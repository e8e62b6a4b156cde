package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/rabbitmq/amqp091-go"

	"github.com/dmarcwatch/reportstack/interfaces"
	"github.com/dmarcwatch/reportstack/internal/logger"
	"github.com/dmarcwatch/reportstack/internal/tracing"
)

const (
	ExchangeReportstack = "reportstack-direct"

	RoutingKeyReportProcessed = "reportstack-report-processed"

	DefaultPublishTimeout = 5 * time.Second
)

// RabbitMQPublisher emits pipeline outcome events for downstream
// consumers (alerting, dashboards). Publishing is best-effort: a broker
// outage is logged and never fails the processing transaction that
// already committed.
type RabbitMQPublisher struct {
	connection     *amqp091.Connection
	publishChannel *amqp091.Channel
	url            string
	log            logger.Logger
}

func NewRabbitMQPublisher(rabbitmqURL string, log logger.Logger) (*RabbitMQPublisher, error) {
	publisher := &RabbitMQPublisher{
		url: rabbitmqURL,
		log: log,
	}

	if err := publisher.connect(); err != nil {
		return nil, err
	}

	return publisher, nil
}

func (r *RabbitMQPublisher) connect() error {
	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return err
	}

	channel, err := connection.Channel()
	if err != nil {
		connection.Close()
		return err
	}

	err = channel.ExchangeDeclare(
		ExchangeReportstack,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		connection.Close()
		return err
	}

	r.connection = connection
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) PublishReportProcessed(ctx context.Context, event interfaces.ReportProcessedEvent) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishReportProcessed")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("ingested_report_id", event.IngestedReportID)
	span.SetTag("status", event.Status)

	body, err := json.Marshal(event)
	if err != nil {
		tracing.TraceErr(span, err)
		r.log.Errorf("Failed to marshal report event: %v", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
	defer cancel()

	err = r.publishChannel.PublishWithContext(publishCtx,
		ExchangeReportstack,
		RoutingKeyReportProcessed,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		tracing.TraceErr(span, err)
		r.log.Errorf("Failed to publish report event for ingested report %d: %v", event.IngestedReportID, err)
	}
}

func (r *RabbitMQPublisher) Close() {
	if r.publishChannel != nil {
		_ = r.publishChannel.Close()
	}
	if r.connection != nil {
		_ = r.connection.Close()
	}
}
