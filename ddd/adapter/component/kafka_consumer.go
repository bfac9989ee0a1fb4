package component

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/jpillora/backoff"
	kafkago "github.com/segmentio/kafka-go"

	pkgkafka "transcode-orchestrator/pkg/kafka"
	"transcode-orchestrator/pkg/logger"
)

// errDecode 消息无法解析，按 commit_on_decode_error 决定是否提交
var errDecode = errors.New("decode message")

type messageHandler func(ctx context.Context, msg kafkago.Message) error

// kafkaConsumer 通用的拉取-处理-提交循环
type kafkaConsumer struct {
	name            string
	topic           string
	groupID         string
	commitOnDecode  bool
	commitOnProcess bool
	handle          messageHandler

	cancel context.CancelFunc
	done   chan struct{}
}

func (c *kafkaConsumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	reader := pkgkafka.DefaultClient().Reader(c.topic, c.groupID)
	go c.loop(ctx, reader)
	return nil
}

func (c *kafkaConsumer) loop(ctx context.Context, reader *kafkago.Reader) {
	defer close(c.done)
	defer reader.Close()
	logger.Infof("Kafka consumer started name=%s topic=%s group=%s", c.name, c.topic, c.groupID)

	b := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: true}
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := b.Duration()
			if errors.Is(err, io.EOF) {
				logger.Debug("Kafka reader EOF", map[string]interface{}{"topic": c.topic})
			} else {
				logger.Warnf("Kafka read error topic=%s retry_in=%s error=%v", c.topic, wait, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		commit := true
		if err := c.handle(ctx, msg); err != nil {
			if errors.Is(err, errDecode) {
				commit = c.commitOnDecode
			} else {
				commit = c.commitOnProcess
			}
			logger.Warn("Kafka message handling failed", map[string]interface{}{
				"consumer":  c.name,
				"topic":     c.topic,
				"partition": msg.Partition,
				"offset":    msg.Offset,
				"commit":    commit,
				"error":     err.Error(),
			})
		}
		if !commit {
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warnf("Kafka commit failed topic=%s offset=%d error=%v", c.topic, msg.Offset, err)
		}
	}
}

func (c *kafkaConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return nil
}

func (c *kafkaConsumer) GetName() string { return c.name }
