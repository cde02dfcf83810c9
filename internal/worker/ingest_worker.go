package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	appsvc "peerai-backend/internal/app"
	"peerai-backend/internal/platform/logger"
	rabbitmqClient "peerai-backend/internal/platform/rabbitmq"
)

// IngestWorker consumes ingest jobs and drives the processing pipeline.
// One delivery is one job; a job-level error nacks the delivery, while
// per-document failures are recorded on the document rows and acked.
type IngestWorker struct {
	conn       *amqp.Connection
	processing *appsvc.ProcessingService
	queueName  string
	log        *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(
	conn *amqp.Connection,
	processing *appsvc.ProcessingService,
	queueName string,
	log *logger.Logger,
) *IngestWorker {
	if log == nil {
		log = logger.NewNop()
	}
	return &IngestWorker{
		conn:       conn,
		processing: processing,
		queueName:  queueName,
		log:        log,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare ingest queue failed: %w", err)
	}

	// One unacked job at a time keeps a single worker from hogging the
	// provider's embedding quota.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume ingest queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job rabbitmqClient.IngestJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					w.log.Error("decode ingest job failed", "error", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.processing.RunJob(workerCtx, job); err != nil {
					w.log.Error("run ingest job failed", "app_id", job.AppID, "error", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
