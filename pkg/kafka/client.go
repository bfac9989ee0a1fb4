package kafka

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/logger"
)

type Client struct {
	brokers  []string
	clientID string
	groupID  string
	dialer   *kafka.Dialer
	writers  sync.Map // topic -> *kafka.Writer
}

var (
	once      sync.Once
	singleton *Client
)

func DefaultClient() *Client {
	once.Do(func() {
		singleton = &Client{}
	})
	return singleton
}

func (c *Client) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before Kafka client")
	}
	c.brokers = cfg.Kafka.BootstrapServers
	c.clientID = cfg.Kafka.ClientID
	c.groupID = cfg.Kafka.GroupID
	c.dialer = &kafka.Dialer{
		Timeout:  10 * time.Second,
		ClientID: c.clientID,
	}
	for _, topic := range []string{cfg.Kafka.Topics.AssetIngested, cfg.Kafka.Topics.StorageMove, cfg.Kafka.Topics.AssetStateChanged} {
		if err := c.EnsureTopic(topic, 3, 1); err != nil {
			logger.Warnf("Kafka ensure topic failed topic=%s error=%v", topic, err)
		}
	}
	logger.Infof("Kafka client opened brokers=%v client_id=%s", c.brokers, c.clientID)
}

func (c *Client) Close() {
	c.writers.Range(func(key, value interface{}) bool {
		if w, ok := value.(*kafka.Writer); ok {
			_ = w.Close()
		}
		return true
	})
}

// GroupID is the consumer group configured for this service.
func (c *Client) GroupID() string { return c.groupID }

func (c *Client) Writer(topic string) *kafka.Writer {
	if v, ok := c.writers.Load(topic); ok {
		return v.(*kafka.Writer)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	actual, loaded := c.writers.LoadOrStore(topic, w)
	if loaded {
		_ = w.Close()
	}
	return actual.(*kafka.Writer)
}

func (c *Client) Produce(ctx context.Context, topic string, key, value []byte) error {
	msg := kafka.Message{Key: key, Value: value, Time: time.Now()}
	return c.Writer(topic).WriteMessages(ctx, msg)
}

// ProduceJSON marshals v and writes it keyed by key, so one asset's events stay on one partition.
func (c *Client) ProduceJSON(ctx context.Context, topic, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Produce(ctx, topic, []byte(key), body)
}

func (c *Client) Reader(topic, groupID string) *kafka.Reader {
	logger.Infof("Kafka reader created topic=%s group=%s brokers=%v", topic, groupID, c.brokers)
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		GroupID:  groupID,
		Topic:    topic,
		Dialer:   c.dialer,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
}

// EnsureTopic creates the topic if it does not exist.
func (c *Client) EnsureTopic(topic string, numPartitions, replicationFactor int) error {
	if len(c.brokers) == 0 || topic == "" {
		return nil
	}
	conn, err := kafka.Dial("tcp", c.brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cc, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer cc.Close()
	return cc.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
}
