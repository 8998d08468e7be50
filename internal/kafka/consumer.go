package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when processing succeeded and the offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	log     *zap.Logger
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, log: log.With(zap.String("topic", topic), zap.String("group", group)), workers: workers}
}

// report hands an error to the dispatch loop without ever blocking: once
// Start has returned nobody drains errs, and a worker stuck on a full
// channel would never exit.
func (c *Consumer) report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
		c.log.Warn("handler error", zap.Error(err))
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	errs := make(chan error, c.workers)

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					c.report(errs, err)
					continue
				}
				// commit on success
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.report(errs, err)
				}
			}
		}()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			close(jobs)
			// keep shutdown quiet
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}

		// non-blocking error drain so workers never deadlock
		select {
		case e := <-errs:
			c.log.Warn("handler error", zap.Error(e))
			time.Sleep(200 * time.Millisecond) // light backoff
		default:
		}
	}
}
