package layout

import (
	"errors"
	"fmt"
)

// Wall - значение ребра или угла в сетке.
// Порядок констант задаёт «силу» стены при заполнении углов.
type Wall uint8

const (
	WallEmpty Wall = iota
	WallHalf
	WallFull
)

// ErrInvalidWall возвращается при неизвестном теге стены.
var ErrInvalidWall = errors.New("invalid wall tag")

// Token возвращает тег стены: "0", "w" или "h"
func (w Wall) Token() string {
	switch w {
	case WallEmpty:
		return "0"
	case WallFull:
		return "w"
	case WallHalf:
		return "h"
	default:
		return "?"
	}
}

// String возвращает имя стены
func (w Wall) String() string {
	switch w {
	case WallEmpty:
		return "empty"
	case WallFull:
		return "wall"
	case WallHalf:
		return "half"
	default:
		return "unknown"
	}
}

// ParseWallTag переводит тег типа стены в значение сетки.
func ParseWallTag(tag string) (Wall, error) {
	switch tag {
	case "0":
		return WallEmpty, nil
	case "w":
		return WallFull, nil
	case "h":
		return WallHalf, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidWall, tag)
	}
}
