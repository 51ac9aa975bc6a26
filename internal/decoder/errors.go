package decoder

import (
	"errors"
	"fmt"

	"github.com/annel0/layoutd/internal/layout"
	"github.com/annel0/layoutd/internal/wallcodec"
)

// Ошибки декодирования записи раскладки
var (
	ErrUnsupportedVersion  = errors.New("unsupported layout version")
	ErrMalformedRecord     = errors.New("malformed layout record")
	ErrInvalidDimensions   = errors.New("invalid layout dimensions")
	ErrTruncatedSquareData = errors.New("truncated square data")
	ErrTruncatedWallData   = errors.New("truncated wall data")
	ErrTrailingSquareData  = errors.New("trailing square data")
	ErrTrailingWallData    = errors.New("trailing wall data")
	ErrInvalidShareCode    = errors.New("invalid share code")

	// Ошибки кодека стен пробрасываются как есть
	ErrInvalidDigit    = wallcodec.ErrInvalidDigit
	ErrInvalidWallCode = wallcodec.ErrInvalidWallCode
)

// PositionError привязывает ошибку к позиции обхода сетки.
type PositionError struct {
	Row int
	Col int
	Err error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position (%d,%d): %v", e.Row, e.Col, e.Err)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

// Position извлекает позицию ошибки, если она есть
func Position(err error) (row, col int, ok bool) {
	var pe *PositionError
	if errors.As(err, &pe) {
		return pe.Row, pe.Col, true
	}
	return 0, 0, false
}

// Classify возвращает стабильную метку вида ошибки для метрик, событий и API.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrInvalidDimensions):
		return "invalid_dimensions"
	case errors.Is(err, ErrInvalidDigit):
		return "invalid_digit"
	case errors.Is(err, ErrInvalidWallCode):
		return "invalid_wall_code"
	case errors.Is(err, ErrTruncatedSquareData):
		return "truncated_square_data"
	case errors.Is(err, ErrTruncatedWallData):
		return "truncated_wall_data"
	case errors.Is(err, ErrTrailingSquareData):
		return "trailing_square_data"
	case errors.Is(err, ErrTrailingWallData):
		return "trailing_wall_data"
	case errors.Is(err, layout.ErrInvalidSquare):
		return "invalid_square"
	case errors.Is(err, ErrInvalidShareCode):
		return "invalid_share_code"
	default:
		return "internal"
	}
}

// IsDecodeError сообщает, вызвана ли ошибка содержимым входных данных
// (а не внутренним сбоем).
func IsDecodeError(err error) bool {
	kind := Classify(err)
	return kind != "ok" && kind != "internal"
}
