package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

// SaramaProducer 纯 Go 同步 producer，部署环境没有 librdkafka 时使用
type SaramaProducer struct {
	producer sarama.SyncProducer
}

func newSaramaConfig(cfg KafkaProducerConfig) *sarama.Config {
	conf := sarama.NewConfig()
	conf.Version = sarama.V2_1_0_0
	conf.ClientID = cfg.ClientID + getClientID()
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	conf.Producer.Partitioner = sarama.NewHashPartitioner
	conf.Producer.Compression = sarama.CompressionSnappy
	conf.Producer.RequiredAcks = sarama.WaitForLocal
	conf.Producer.MaxMessageBytes = DefaultMessageMaxBytes
	conf.Producer.Retry.Max = 3
	conf.Producer.Retry.Backoff = time.Second

	if cfg.MessageMaxBytes != 0 {
		conf.Producer.MaxMessageBytes = cfg.MessageMaxBytes
	}
	if cfg.RetryBackoffMs != 0 {
		conf.Producer.Retry.Backoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	}
	if cfg.RequiredAcks != 0 {
		conf.Producer.RequiredAcks = sarama.RequiredAcks(cfg.RequiredAcks)
	}

	switch strings.ToUpper(cfg.SecurityProtocol) {
	case "PLAINTEXT", "":
	case "SASL_PLAINTEXT", "SASL_SSL":
		conf.Net.SASL.Enable = true
		conf.Net.SASL.User = cfg.SaslUsername
		conf.Net.SASL.Password = cfg.SaslPassword
		if cfg.SaslMechanism != "" {
			conf.Net.SASL.Mechanism = sarama.SASLMechanism(cfg.SaslMechanism)
		}
		conf.Net.TLS.Enable = strings.EqualFold(cfg.SecurityProtocol, "SASL_SSL")
	case "SSL":
		conf.Net.TLS.Enable = true
	default:
		panic(fmt.Sprintf("unknown kafka security protocol %q", cfg.SecurityProtocol))
	}
	return conf
}

// NewSaramaProducer 连接 brokers 创建同步 producer
func NewSaramaProducer(brokers []string, cfg KafkaProducerConfig) (*SaramaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers empty")
	}
	initKafka()
	producer, err := sarama.NewSyncProducer(brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create sarama producer: %w", err)
	}
	return &SaramaProducer{producer: producer}, nil
}

// SendMessageWithHeaders 同步投递，返回 broker 确认结果
func (p *SaramaProducer) SendMessageWithHeaders(topic string, key string, value []byte, headers map[string]string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	logger.Debug("kafka消息已确认",
		logger.String("topic", topic),
		logger.FieldKey(key),
		logger.Int32("partition", partition),
		logger.Int64("offset", offset))
	return nil
}

func (p *SaramaProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close sarama producer: %w", err)
	}
	logger.Info("✅ sarama producer closed")
	return nil
}
