// Package decoder восстанавливает раскладку из текстовой записи формата v2:
//
//	"<version> <height>x<width> <squareBlock> <wallBlock>"
//
// squareBlock - подряд идущие 3-символьные токены клеток, wallBlock — hex-цифры,
// каждая из которых несёт два 2-битных кода стен.
package decoder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/layoutd/internal/layout"
	"github.com/annel0/layoutd/internal/wallcodec"
)

const (
	// VersionV2 - единственная поддерживаемая версия записи.
	VersionV2 = "v2"

	// DefaultMaxDimension ограничивает высоту и ширину раскладки.
	DefaultMaxDimension = 256

	recordFields = 4
)

// Options настраивает декодер
type Options struct {
	MaxDimension int // 0 означает DefaultMaxDimension
}

// Decoder декодирует записи раскладок. Не хранит состояния между вызовами.
type Decoder struct {
	maxDimension int
}

// New создаёт декодер с указанными опциями
func New(opts Options) *Decoder {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	return &Decoder{maxDimension: opts.MaxDimension}
}

var defaultDecoder = New(Options{})

// DecodeV2 декодирует запись декодером по умолчанию
func DecodeV2(record string) (*layout.Layout, error) {
	return defaultDecoder.DecodeV2(record)
}

// Header - разобранный заголовок записи
type Header struct {
	Version string
	Height  int
	Width   int
}

// ParseHeader проверяет версию и размеры записи, не трогая блоки клеток и стен.
func (d *Decoder) ParseHeader(record string) (Header, []string, error) {
	fields := strings.Split(record, " ")

	// Версия проверяется до любого другого разбора
	if fields[0] != VersionV2 {
		return Header{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, fields[0])
	}
	if len(fields) != recordFields && len(fields) != recordFields-1 {
		return Header{}, nil, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRecord, len(fields), recordFields)
	}

	height, width, err := d.parseSize(fields[1])
	if err != nil {
		return Header{}, nil, err
	}

	// Блок стен можно опустить только там, где стен нет (1x1)
	if len(fields) == recordFields-1 {
		if WallCount(height, width) != 0 {
			return Header{}, nil, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRecord, len(fields), recordFields)
		}
		fields = append(fields, "")
	}

	return Header{Version: fields[0], Height: height, Width: width}, fields, nil
}

// DecodeV2 декодирует запись в раскладку.
//
// Обход идёт построчно по чередующейся сетке. На чётной/чётной позиции
// из начала блока клеток забирается один 3-символьный токен, на ребре из
// потока стен забирается ровно один тип стены, углы пропускаются и
// заполняются в конце FixCornerWalls. При любой ошибке возвращается nil.
func (d *Decoder) DecodeV2(record string) (*layout.Layout, error) {
	header, fields, err := d.ParseHeader(record)
	if err != nil {
		return nil, err
	}

	squares := fields[2]
	walls := wallcodec.NewStream(fields[3])

	l := layout.New(header.Height, header.Width)
	rows, cols := l.Rows(), l.Cols()

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			switch {
			case i%2 == 0 && j%2 == 0:
				if len(squares) < layout.SquareTokenLen {
					return nil, &PositionError{Row: i, Col: j, Err: fmt.Errorf("%w: %d characters left", ErrTruncatedSquareData, len(squares))}
				}
				token := squares[:layout.SquareTokenLen]
				squares = squares[layout.SquareTokenLen:]

				sq, err := layout.ParseSquare(token)
				if err != nil {
					return nil, &PositionError{Row: i, Col: j, Err: err}
				}
				if err := l.SetElement(i, j, sq); err != nil {
					return nil, &PositionError{Row: i, Col: j, Err: err}
				}

			case i%2 == 0 || j%2 == 0:
				kind, err := walls.Next()
				if errors.Is(err, wallcodec.ErrExhausted) {
					return nil, &PositionError{Row: i, Col: j, Err: fmt.Errorf("%w: %d digits supplied", ErrTruncatedWallData, len(fields[3]))}
				}
				if err != nil {
					return nil, &PositionError{Row: i, Col: j, Err: err}
				}

				wall, err := layout.ParseWallTag(kind.Tag())
				if err != nil {
					return nil, &PositionError{Row: i, Col: j, Err: err}
				}
				if err := l.SetElement(i, j, wall); err != nil {
					return nil, &PositionError{Row: i, Col: j, Err: err}
				}
			}
		}
	}

	if len(squares) > 0 {
		return nil, fmt.Errorf("%w: %d characters after last square", ErrTrailingSquareData, len(squares))
	}
	// Нечётное число рёбер оставляет одну непрочитанную половину последней цифры
	if walls.Remaining() >= wallcodec.WallsPerDigit {
		// Первая цифра, из которой не прочитано ни одной стены
		used := walls.Len() - walls.Remaining()
		first := (used + wallcodec.WallsPerDigit - 1) / wallcodec.WallsPerDigit
		unused := fields[3][first:]
		for k := 0; k < len(unused); k++ {
			if _, err := wallcodec.DigitToNibble(unused[k]); err != nil {
				return nil, fmt.Errorf("digit %d: %w", first+k, err)
			}
		}
		return nil, fmt.Errorf("%w: %d unused digits", ErrTrailingWallData, len(unused))
	}

	l.FixCornerWalls()
	return l, nil
}

// parseSize разбирает токен вида "<height>x<width>"
func (d *Decoder) parseSize(token string) (int, int, error) {
	parts := strings.Split(token, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDimensions, token)
	}

	height, err := d.parseDimension(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: height %q: %v", ErrInvalidDimensions, parts[0], err)
	}
	width, err := d.parseDimension(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: width %q: %v", ErrInvalidDimensions, parts[1], err)
	}
	return height, width, nil
}

func (d *Decoder) parseDimension(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.New("not a number")
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 || n > d.maxDimension {
		return 0, fmt.Errorf("out of range 1..%d", d.maxDimension)
	}
	return n, nil
}

// WallCount возвращает количество рёбер (позиций стен) в раскладке height x width.
func WallCount(height, width int) int {
	if height < 1 || width < 1 {
		return 0
	}
	// горизонтальные соседи в каждой строке + вертикальные в каждом столбце
	return height*(width-1) + width*(height-1)
}

// WallDigits возвращает требуемую длину блока стен.
func WallDigits(height, width int) int {
	n := WallCount(height, width)
	return (n + wallcodec.WallsPerDigit - 1) / wallcodec.WallsPerDigit
}
