// Package batch consumes scheduling batches submitted over NATS
// JetStream, runs them through the scheduler core, persists the outcome,
// and publishes the result.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dante-gpu/production-scheduler/internal/config"
	"github.com/dante-gpu/production-scheduler/internal/models"
	"github.com/dante-gpu/production-scheduler/internal/scheduler"
	"github.com/dante-gpu/production-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Consumer handles receiving and processing scheduling batches from NATS.
type Consumer struct {
	nc           *nats.Conn
	js           nats.JetStreamContext
	logger       *zap.Logger
	cfg          *config.Config
	runStore     store.RunStore
	subscription *nats.Subscription
	shutdownChan chan struct{}
}

// NewConsumer creates a new Consumer and obtains a JetStream context.
func NewConsumer(nc *nats.Conn, cfg *config.Config, runStore store.RunStore, logger *zap.Logger) (*Consumer, error) {
	logger.Info("Creating new batch Consumer")
	var jetStream nats.JetStreamContext
	if nc != nil {
		var err error
		jetStream, err = nc.JetStream()
		if err != nil {
			logger.Error("Failed to get JetStream context for batch Consumer", zap.Error(err))
			return nil, fmt.Errorf("failed to get JetStream context: %w", err)
		}
		logger.Info("JetStream context obtained for batch Consumer")
	}

	return &Consumer{
		nc:           nc,
		js:           jetStream,
		logger:       logger,
		cfg:          cfg,
		runStore:     runStore,
		shutdownChan: make(chan struct{}),
	}, nil
}

// StartConsuming subscribes to the batch-submission subject using a
// durable JetStream pull consumer and starts fetching messages.
func (c *Consumer) StartConsuming() error {
	if c.js == nil {
		c.logger.Error("JetStream context is nil, cannot start consuming batches. NATS connection might be down.")
		return fmt.Errorf("JetStream context not available for consuming batches")
	}

	c.logger.Info("Consumer starting to consume batches",
		zap.String("subject", c.cfg.NatsBatchSubmitSubject),
		zap.String("queue_group", c.cfg.NatsBatchQueueGroup),
	)

	var err error
	c.subscription, err = c.js.PullSubscribe(
		c.cfg.NatsBatchSubmitSubject,
		c.cfg.NatsConsumerDurable,
		nats.AckWait(60*time.Second),
	)
	if err != nil {
		c.logger.Error("Failed to create JetStream pull subscription",
			zap.String("subject", c.cfg.NatsBatchSubmitSubject),
			zap.String("durable_name", c.cfg.NatsConsumerDurable),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create pull subscription: %w", err)
	}

	c.logger.Info("Successfully subscribed to JetStream for batches",
		zap.String("subject", c.cfg.NatsBatchSubmitSubject),
		zap.String("durable_consumer", c.cfg.NatsConsumerDurable),
	)

	go c.fetchLoop()
	return nil
}

func (c *Consumer) fetchLoop() {
	c.logger.Info("Starting JetStream message fetch loop...")
	const batchSize = 5
	for {
		select {
		case <-c.shutdownChan:
			c.logger.Info("Shutting down JetStream message fetch loop...")
			return
		default:
			msgs, err := c.subscription.Fetch(batchSize, nats.MaxWait(10*time.Second))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				c.logger.Error("Error fetching messages from JetStream", zap.Error(err))
				if !c.subscription.IsValid() || c.nc.Status() != nats.CONNECTED {
					c.logger.Error("NATS subscription or connection lost. Stopping fetch loop.")
					return
				}
				time.Sleep(5 * time.Second)
				continue
			}
			for _, msg := range msgs {
				c.handleMessage(msg)
			}
		}
	}
}

// handleMessage processes a single NATS message containing a scheduling
// request, runs the core scheduler, persists the run, and publishes the
// result.
func (c *Consumer) handleMessage(msg *nats.Msg) {
	ctx := context.Background()
	c.logger.Debug("Received raw NATS message",
		zap.String("subject", msg.Subject),
		zap.Int("data_length", len(msg.Data)),
	)

	var req scheduler.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		c.logger.Error("Failed to unmarshal batch data from NATS message", zap.Error(err))
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Error("Failed to ACK unmarshalable (poison pill) message", zap.Error(ackErr))
		}
		return
	}

	runID := uuid.New().String()
	run := &models.RunRecord{
		RunID:      runID,
		Source:     "nats",
		Request:    models.RequestDB(req),
		State:      models.RunStateProcessing,
		ReceivedAt: time.Now().UTC(),
	}
	if err := c.runStore.SaveRun(ctx, run); err != nil {
		c.logger.Error("Failed to save new run to store", zap.String("run_id", runID), zap.Error(err))
		if nakErr := msg.NakWithDelay(10 * time.Second); nakErr != nil {
			c.logger.Error("Failed to NAK message after failing to save new run", zap.Error(nakErr))
			_ = msg.Ack()
		}
		return
	}

	result, err := scheduler.Run(&req)
	if err != nil {
		c.logger.Error("Scheduling run failed", zap.String("run_id", runID), zap.Error(err))
		if updateErr := c.runStore.UpdateRunState(ctx, runID, models.RunStateFailed, err.Error(), run.Attempts+1); updateErr != nil {
			c.logger.Error("Failed to persist failed run state", zap.String("run_id", runID), zap.Error(updateErr))
		}

		if _, ok := err.(*scheduler.InvalidInput); ok {
			// Malformed input never succeeds on retry; ack it away.
			if ackErr := msg.Ack(); ackErr != nil {
				c.logger.Error("Failed to ACK invalid batch message", zap.Error(ackErr))
			}
			return
		}
		if nakErr := msg.NakWithDelay(30 * time.Second); nakErr != nil {
			c.logger.Error("Failed to NAK message after scheduling error", zap.Error(nakErr))
			_ = msg.Ack()
		}
		return
	}

	run.Result = models.ResultDB(*result)
	run.State = models.RunStateCompleted
	run.TotalOTs = result.Summary.TotalOTs
	run.TotalSetups = result.Summary.TotalSetups
	run.AtrasoCount = len(result.Summary.Atrasos)
	if err := c.runStore.SaveRun(ctx, run); err != nil {
		c.logger.Error("Failed to persist completed run", zap.String("run_id", runID), zap.Error(err))
	}

	c.publishResult(runID, result)

	if ackErr := msg.AckSync(); ackErr != nil {
		c.logger.Error("Failed to ACK NATS message for completed batch", zap.String("run_id", runID), zap.Error(ackErr))
	}
	c.logger.Info("Finished processing and ACKed NATS message for batch", zap.String("run_id", runID))
}

func (c *Consumer) publishResult(runID string, result *scheduler.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to marshal result for publish", zap.String("run_id", runID), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("%s.%s", c.cfg.NatsResultPublishPrefix, runID)
	if err := c.nc.Publish(subject, payload); err != nil {
		c.logger.Error("Failed to publish result to NATS", zap.String("run_id", runID), zap.String("subject", subject), zap.Error(err))
	}
}

// Stop gracefully shuts down the Consumer.
func (c *Consumer) Stop() {
	c.logger.Info("Stopping batch Consumer...")
	close(c.shutdownChan)

	if c.subscription != nil {
		c.logger.Info("Unsubscribing NATS batch consumer...")
		if err := c.subscription.Drain(); err != nil {
			c.logger.Error("Error draining NATS subscription", zap.Error(err))
			if unsubErr := c.subscription.Unsubscribe(); unsubErr != nil {
				c.logger.Error("Error unsubscribing NATS batch consumer after drain failed", zap.Error(unsubErr))
			}
		} else {
			c.logger.Info("NATS batch consumer subscription drained successfully")
		}
	}
	c.logger.Info("Batch Consumer stopped.")
}
