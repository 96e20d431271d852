package publisher

import (
	"context"
	"fmt"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
)

// MessageProducer kafka.KafkaProducer 满足该接口
type MessageProducer interface {
	SendMessageWithHeaders(topic string, key string, value []byte, headers map[string]string) error
	Close() error
}

// KafkaPublisher 把巨鲸交易编码为事件广播到 kafka，按代币地址分区
type KafkaPublisher struct {
	producer MessageProducer
	topic    string
}

func NewKafkaPublisher(producer MessageProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) GetType() string {
	return "kafka"
}

func (p *KafkaPublisher) Publish(ctx context.Context, tx *model.WhaleTransaction) error {
	event := tx.ToEvent()
	payload, err := common.EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", tx.ID, err)
	}

	headers := map[string]string{
		"event_type": event.Type.String(),
		"id":         tx.ID,
	}
	return p.producer.SendMessageWithHeaders(p.topic, event.InnerEvent.GetKey(), payload, headers)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
