package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

func newProducerConfig(brokers []string, cfg KafkaProducerConfig) *kafka.ConfigMap {
	var kafkaconf = &kafka.ConfigMap{
		"api.version.request":           "true",
		"message.max.bytes":             10 * MB,
		"linger.ms":                     5,
		"sticky.partitioning.linger.ms": 0,
		"retries":                       3,
		"retry.backoff.ms":              1000,
		"acks":                          "1",
		"compression.type":              "snappy",
	}
	if cfg.MessageMaxBytes != 0 {
		kafkaconf.SetKey("message.max.bytes", cfg.MessageMaxBytes)
	}
	if cfg.LingerMs != 0 {
		kafkaconf.SetKey("linger.ms", cfg.LingerMs)
	}
	if cfg.PartitionLingerMs != 0 {
		kafkaconf.SetKey("sticky.partitioning.linger.ms", cfg.PartitionLingerMs)
	}
	if cfg.RetryBackoffMs != 0 {
		kafkaconf.SetKey("retry.backoff.ms", cfg.RetryBackoffMs)
	}
	if cfg.RequiredAcks != 0 {
		kafkaconf.SetKey("acks", cfg.RequiredAcks)
	}

	if cfg.ClientID != "" {
		kafkaconf.SetKey("client.id", cfg.ClientID+getClientID())
	}
	bootstrapServers := strings.Join(brokers, ",")
	kafkaconf.SetKey("bootstrap.servers", bootstrapServers)

	switch cfg.SecurityProtocol {
	case "PLAINTEXT", "":
		kafkaconf.SetKey("security.protocol", "plaintext")
	case "SASL_SSL":
		kafkaconf.SetKey("security.protocol", "sasl_ssl")
		//kafkaconf.SetKey("sasl.mechanism", cfg.SaslMechanism) // 或 SCRAM-SHA-256, SCRAM-SHA-512
		kafkaconf.SetKey("sasl.username", cfg.SaslUsername)
		kafkaconf.SetKey("sasl.password", cfg.SaslPassword)
		kafkaconf.SetKey("ssl.ca.location", cfg.SslCaLocation)
		kafkaconf.SetKey("ssl.certificate.location", cfg.SslCertificateLocation)
		kafkaconf.SetKey("ssl.key.location", cfg.SslKeyLocation)

		// hostname校验改成空,
		kafkaconf.SetKey("enable.ssl.certificate.verification", "false")
		kafkaconf.SetKey("ssl.endpoint.identification.algorithm", "None")
	case "SSL":
		kafkaconf.SetKey("security.protocol", "ssl")
		kafkaconf.SetKey("ssl.ca.location", cfg.SslCaLocation)
		kafkaconf.SetKey("ssl.certificate.location", cfg.SslCertificateLocation)
		kafkaconf.SetKey("ssl.key.location", cfg.SslKeyLocation)
		kafkaconf.SetKey("enable.ssl.certificate.verification", "false")
	case "SASL_PLAINTEXT":
		kafkaconf.SetKey("security.protocol", "sasl_plaintext")
		kafkaconf.SetKey("sasl.username", cfg.SaslUsername)
		kafkaconf.SetKey("sasl.password", cfg.SaslPassword)
		kafkaconf.SetKey("sasl.mechanism", cfg.SaslMechanism)
	default:
		panic(kafka.NewError(kafka.ErrUnknownProtocol, "unknown protocol", true))
	}

	return kafkaconf
}

type KafkaProducer struct {
	producer   *kafka.Producer
	eventsDone chan struct{}
	closeOnce  sync.Once
}

func NewKafkaProducer(brokers []string, cfg KafkaProducerConfig) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers empty")
	}
	producer, err := kafka.NewProducer(newProducerConfig(brokers, cfg))
	if err != nil {
		return nil, err
	}

	p := &KafkaProducer{
		producer:   producer,
		eventsDone: make(chan struct{}),
	}
	go p.drainEvents()

	return p, nil
}

// drainEvents 消费投递回执，失败只记录日志
func (p *KafkaProducer) drainEvents() {
	defer close(p.eventsDone)
	for event := range p.producer.Events() {
		switch ev := event.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				topic := ""
				if ev.TopicPartition.Topic != nil {
					topic = *ev.TopicPartition.Topic
				}
				logger.Error("❌ kafka投递失败",
					logger.FieldErr(ev.TopicPartition.Error),
					logger.String("topic", topic),
					logger.FieldKey(string(ev.Key)),
				)
			}
		case kafka.Error:
			logger.Error("❌ kafka客户端错误",
				logger.String("code", ev.Code().String()),
				logger.String("message", ev.Error()),
			)
		default:
			logger.Debug("kafka_event", logger.FieldEvent(fmt.Sprintf("%T", ev)))
		}
	}
}

func (p *KafkaProducer) SendMessage(topic string, value []byte) error {
	return p.produce(topic, nil, value, nil)
}

func (p *KafkaProducer) SendMessageWithKey(topic string, key string, value []byte) error {
	return p.produce(topic, []byte(key), value, nil)
}

// SendMessageWithHeaders 带 header 投递，header 用于下游按类型路由
func (p *KafkaProducer) SendMessageWithHeaders(topic string, key string, value []byte, headers map[string]string) error {
	hs := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		hs = append(hs, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.produce(topic, []byte(key), value, hs)
}

func (p *KafkaProducer) produce(topic string, key, value []byte, headers []kafka.Header) error {
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
		Headers:        headers,
	}, nil)
}

// Close flush 剩余消息后关闭，最多等待 10s
func (p *KafkaProducer) Close() error {
	var closeErr error
	p.closeOnce.Do(func() {
		logger.Info("closing kafka producer...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			remaining := p.producer.Flush(5 * 1000)
			p.producer.Close()
			<-p.eventsDone
			if remaining > 0 {
				done <- fmt.Errorf("flush incomplete: %d messages remaining", remaining)
				return
			}
			done <- nil
		}()

		select {
		case err := <-done:
			if err != nil {
				closeErr = fmt.Errorf("close failed: %w", err)
				return
			}
			logger.Info("✅ kafka producer closed")
		case <-ctx.Done():
			closeErr = fmt.Errorf("close timeout after 10s")
		}
	})
	return closeErr
}
