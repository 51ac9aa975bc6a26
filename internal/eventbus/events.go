package eventbus

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Типы событий layoutd
const (
	EventLayoutDecoded  = "LayoutDecoded"
	EventLayoutRejected = "LayoutRejected"
	EventLayoutSaved    = "LayoutSaved"
	EventLayoutDeleted  = "LayoutDeleted"
)

// EventTypes перечисляет все типы событий сервиса
func EventTypes() []string {
	return []string{EventLayoutDecoded, EventLayoutRejected, EventLayoutSaved, EventLayoutDeleted}
}

const (
	// DefaultSource - значение Envelope.Source для событий сервиса
	DefaultSource = "layoutd"
	// PayloadVersion - версия схемы полезной нагрузки
	PayloadVersion = 1
)

// EncodePayload сериализует поля события в protobuf (google.protobuf.Struct).
// Допустимые значения — те, что принимает structpb.NewValue.
func EncodePayload(fields map[string]interface{}) ([]byte, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return proto.Marshal(st)
}

// DecodePayload восстанавливает поля события. Числа возвращаются как float64.
func DecodePayload(data []byte) (map[string]interface{}, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return st.AsMap(), nil
}

func newEvent(eventType string, priority int, fields map[string]interface{}) (*Envelope, error) {
	payload, err := EncodePayload(fields)
	if err != nil {
		return nil, err
	}
	return NewEnvelope(eventType, priority, payload), nil
}

// NewLayoutDecodedEvent - запись успешно декодирована
func NewLayoutDecodedEvent(cacheKey string, height, width int, cached bool, durationMs float64) (*Envelope, error) {
	return newEvent(EventLayoutDecoded, 1, map[string]interface{}{
		"cache_key":   cacheKey,
		"height":      height,
		"width":       width,
		"cached":      cached,
		"duration_ms": durationMs,
	})
}

// NewLayoutRejectedEvent - запись отклонена декодером
func NewLayoutRejectedEvent(kind, message string, row, col int, located bool) (*Envelope, error) {
	fields := map[string]interface{}{
		"error_kind": kind,
		"message":    message,
	}
	if located {
		fields["row"] = row
		fields["col"] = col
	}
	return newEvent(EventLayoutRejected, 3, fields)
}

// NewLayoutSavedEvent - запись сохранена в хранилище
func NewLayoutSavedEvent(id, owner string, height, width int) (*Envelope, error) {
	return newEvent(EventLayoutSaved, 5, map[string]interface{}{
		"id":     id,
		"owner":  owner,
		"height": height,
		"width":  width,
	})
}

// NewLayoutDeletedEvent - запись удалена
func NewLayoutDeletedEvent(id, owner string) (*Envelope, error) {
	return newEvent(EventLayoutDeleted, 5, map[string]interface{}{
		"id":    id,
		"owner": owner,
	})
}
