package kafka

import (
	"errors"
	"sync"

	"github.com/IBM/sarama"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

var (
	defaultProducer *KafkaProducer
	startOnce       sync.Once
)

// ErrProducerNotReady 默认 producer 未初始化
var ErrProducerNotReady = errors.New("kafka producer not initialized")

// initKafka 把 sarama 的内部日志接到 zap，sarama 客户端由运维工具共用
func initKafka() {
	startOnce.Do(func() {
		sarama.Logger = NewLoggerKafka(logger.Named("kafka-core"), LOGGER_INFO)
		sarama.DebugLogger = NewLoggerKafka(logger.Named("kafka-core-debug"), LOGGER_DEBUG)
	})
}

// SetupKafkaProducer 创建默认 producer
func SetupKafkaProducer(brokers []string, cfg KafkaProducerConfig) (*KafkaProducer, error) {
	initKafka()
	producer, err := NewKafkaProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	defaultProducer = producer
	return producer, nil
}

func CloseProducer() error {
	if defaultProducer == nil {
		return nil
	}
	err := defaultProducer.Close()
	defaultProducer = nil
	return err
}

func SendMessage(topic string, value []byte) error {
	if defaultProducer == nil {
		return ErrProducerNotReady
	}
	return defaultProducer.SendMessage(topic, value)
}

func SendMessageWithKey(topic string, key string, value []byte) error {
	if defaultProducer == nil {
		return ErrProducerNotReady
	}
	return defaultProducer.SendMessageWithKey(topic, key, value)
}
