package common

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// EncodeEvent 4 字节小端类型前缀 + gob 负载
func EncodeEvent(event *Event) ([]byte, error) {
	var buf bytes.Buffer

	typeBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(typeBytes, uint32(event.Type))
	buf.Write(typeBytes)

	enc := gob.NewEncoder(&buf)

	switch event.Type {
	case WhaleTransferEventType, WhaleSwapEventType:
		whale, ok := event.InnerEvent.(*WhaleEvent)
		if !ok {
			return nil, fmt.Errorf("event type %s carries %T", event.Type, event.InnerEvent)
		}
		if err := enc.Encode(whale); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown event type: %d", event.Type)
	}
	return buf.Bytes(), nil
}

func DecodeEvent(data []byte) (*Event, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short")
	}

	eventType := EventType(binary.LittleEndian.Uint32(data[:4]))
	dec := gob.NewDecoder(bytes.NewReader(data[4:]))

	switch eventType {
	case WhaleTransferEventType, WhaleSwapEventType:
		var whale *WhaleEvent
		if err := dec.Decode(&whale); err != nil {
			return nil, fmt.Errorf("failed to decode whale event: %w", err)
		}
		return &Event{Type: eventType, InnerEvent: whale}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %d", eventType)
	}
}

func init() {
	gob.Register(WhaleEvent{})
}
