package decoder

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/annel0/layoutd/internal/layout"
	"github.com/klauspost/compress/zstd"
)

// MaxShareCodeBytes ограничивает размер распакованной записи.
const MaxShareCodeBytes = 64 << 10

var (
	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// sharedDecoder возвращает общий zstd-декодер; DecodeAll безопасен для
// конкурентного использования.
func sharedDecoder() (*zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdDecoder, zstdErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(MaxShareCodeBytes),
		)
	})
	return zstdDecoder, zstdErr
}

// UnwrapShareCode превращает код для обмена (base64url от zstd-кадра) в текст записи.
func UnwrapShareCode(code string) (string, error) {
	code = strings.TrimRight(strings.TrimSpace(code), "=")
	if code == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidShareCode)
	}

	compressed, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrInvalidShareCode, err)
	}

	dec, err := sharedDecoder()
	if err != nil {
		return "", fmt.Errorf("zstd decoder: %w", err)
	}

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: zstd: %v", ErrInvalidShareCode, err)
	}
	if len(raw) > MaxShareCodeBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidShareCode, len(raw), MaxShareCodeBytes)
	}
	return string(raw), nil
}

// LooksLikeRecord отличает сырую запись от кода для обмена:
// запись начинается с тега версии и содержит пробелы, base64url — никогда.
func LooksLikeRecord(input string) bool {
	return strings.HasPrefix(input, "v") && strings.Contains(input, " ")
}

// Normalize возвращает текст записи для сырой записи или кода для обмена.
// Пробельные символы по краям входа отбрасываются в обоих случаях.
func Normalize(input string) (string, error) {
	input = strings.TrimSpace(input)
	if LooksLikeRecord(input) {
		return input, nil
	}
	return UnwrapShareCode(input)
}

// Decode принимает сырую запись или код для обмена и декодирует раскладку.
func (d *Decoder) Decode(input string) (*layout.Layout, error) {
	record, err := Normalize(input)
	if err != nil {
		return nil, err
	}
	return d.DecodeV2(record)
}

// Decode декодирует вход декодером по умолчанию
func Decode(input string) (*layout.Layout, error) {
	return defaultDecoder.Decode(input)
}
