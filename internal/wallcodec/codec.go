package wallcodec

import (
	"errors"
	"fmt"
)

// Kind - символический тип стены после декодирования 2-битного кода.
type Kind uint8

const (
	KindEmpty Kind = iota // 0b11: ребро свободно
	KindWall              // 0b01: сплошная стена
	KindHalf              // 0b10: полустена
)

// String возвращает строковое представление типа стены
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindWall:
		return "wall"
	case KindHalf:
		return "half"
	default:
		return "unknown"
	}
}

// Tag возвращает короткий тег, который понимает парсер стен сетки.
func (k Kind) Tag() string {
	switch k {
	case KindEmpty:
		return "0"
	case KindWall:
		return "w"
	case KindHalf:
		return "h"
	default:
		return ""
	}
}

const (
	// BitsPerWall - ширина одного кода стены.
	BitsPerWall = 2

	// WallsPerDigit фиксировано: одна hex-цифра всегда несёт ровно две стены.
	// Не выводится из BitsPerWall.
	WallsPerDigit = 2

	wallMask = (1 << BitsPerWall) - 1 // 0b11
)

// Ошибки кодека
var (
	ErrInvalidDigit    = errors.New("invalid wall digit")
	ErrInvalidWallCode = errors.New("invalid wall code")
)

const digitAlphabet = "0123456789abcdef"

// digitTable: байт -> ниббл+1, 0 означает «символ вне алфавита».
var digitTable = func() [256]uint8 {
	var t [256]uint8
	for i := 0; i < len(digitAlphabet); i++ {
		t[digitAlphabet[i]] = uint8(i) + 1
	}
	return t
}()

// codeTable индексируется 2-битным кодом. 0b00 зарезервирован как признак
// повреждённых данных и никогда не декодируется.
var codeTable = [4]struct {
	kind  Kind
	valid bool
}{
	0b00: {valid: false},
	0b01: {kind: KindWall, valid: true},
	0b10: {kind: KindHalf, valid: true},
	0b11: {kind: KindEmpty, valid: true},
}

// DigitToNibble переводит символ из алфавита 0-9a-f в 4-битное значение.
func DigitToNibble(c byte) (uint8, error) {
	v := digitTable[c]
	if v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDigit, c)
	}
	return v - 1, nil
}

// NibbleToDigit - обратная таблица алфавита. Значения вне 0..15 маскируются.
func NibbleToDigit(n uint8) byte {
	return digitAlphabet[n&0x0f]
}

// ExtractWallCode достаёт index-ю пару бит из ниббла (0 — младшая пара, 1 — старшая).
func ExtractWallCode(nibble uint8, index int) uint8 {
	return (nibble >> (uint(index) * BitsPerWall)) & wallMask
}

// CodeToWallKind переводит 2-битный код в тип стены.
func CodeToWallKind(code uint8) (Kind, error) {
	if code > wallMask {
		return 0, fmt.Errorf("%w: 0b%b out of range", ErrInvalidWallCode, code)
	}
	entry := codeTable[code]
	if !entry.valid {
		// 0b00 - сентинел повреждения
		return 0, fmt.Errorf("%w: 0b%02b is reserved", ErrInvalidWallCode, code)
	}
	return entry.kind, nil
}
