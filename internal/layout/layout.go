package layout

import (
	"errors"
	"fmt"

	"github.com/annel0/layoutd/internal/vec"
)

// Element - значение одной позиции чередующейся сетки: Square или Wall.
type Element interface {
	Token() string
}

// Ошибки сетки
var (
	ErrOutOfBounds      = errors.New("position out of bounds")
	ErrPositionMismatch = errors.New("element does not fit position")
)

// Layout представляет раскладку height x width клеток.
//
// Хранение ведётся в чередующихся координатах (2*height-1) x (2*width-1):
// чётная/чётная позиция — клетка, ровно одна нечётная — ребро со стеной,
// обе нечётные — угол, который заполняет FixCornerWalls.
//
// Layout не синхронизирован: его заполняет один декодер, после чего он
// используется только на чтение.
type Layout struct {
	height int
	width  int
	cells  [][]Element // [row][col]
}

// New создаёт пустую раскладку указанного размера
func New(height, width int) *Layout {
	if height < 0 {
		height = 0
	}
	if width < 0 {
		width = 0
	}

	l := &Layout{height: height, width: width}
	rows, cols := l.Rows(), l.Cols()
	l.cells = make([][]Element, rows)
	for i := range l.cells {
		l.cells[i] = make([]Element, cols)
	}
	return l
}

// Height возвращает высоту раскладки в клетках
func (l *Layout) Height() int { return l.height }

// Width возвращает ширину раскладки в клетках
func (l *Layout) Width() int { return l.width }

// Rows возвращает количество строк чередующейся сетки
func (l *Layout) Rows() int {
	if l.height == 0 {
		return 0
	}
	return 2*l.height - 1
}

// Cols возвращает количество столбцов чередующейся сетки
func (l *Layout) Cols() int {
	if l.width == 0 {
		return 0
	}
	return 2*l.width - 1
}

// SetElement записывает значение в позицию (row, col).
// Клетки допускаются только на чётных/чётных позициях, стены — на остальных.
func (l *Layout) SetElement(row, col int, e Element) error {
	pos := vec.Vec2{X: col, Y: row}
	if !pos.In(l.Cols(), l.Rows()) {
		return fmt.Errorf("%w: (%d,%d) in %dx%d grid", ErrOutOfBounds, row, col, l.Rows(), l.Cols())
	}

	switch e.(type) {
	case Square:
		if !pos.IsSquare() {
			return fmt.Errorf("%w: square at (%d,%d)", ErrPositionMismatch, row, col)
		}
	case Wall:
		if pos.IsSquare() {
			return fmt.Errorf("%w: wall at (%d,%d)", ErrPositionMismatch, row, col)
		}
	default:
		return fmt.Errorf("%w: unsupported element %T", ErrPositionMismatch, e)
	}

	l.cells[row][col] = e
	return nil
}

// Element возвращает значение позиции или nil, если позиция пуста или вне сетки
func (l *Layout) Element(row, col int) Element {
	if !(vec.Vec2{X: col, Y: row}).In(l.Cols(), l.Rows()) {
		return nil
	}
	return l.cells[row][col]
}

// SquareAt возвращает клетку по координатам сетки клеток (не чередующейся)
func (l *Layout) SquareAt(row, col int) (Square, bool) {
	sq, ok := l.Element(row*2, col*2).(Square)
	return sq, ok
}

// WallAt возвращает стену в позиции чередующейся сетки
func (l *Layout) WallAt(row, col int) (Wall, bool) {
	w, ok := l.Element(row, col).(Wall)
	return w, ok
}

// FixCornerWalls заполняет углы самой «сильной» из соседних стен:
// сплошная > полустена > пусто.
func (l *Layout) FixCornerWalls() {
	rows, cols := l.Rows(), l.Cols()
	for i := 1; i < rows; i += 2 {
		for j := 1; j < cols; j += 2 {
			corner := WallEmpty
			for _, n := range (vec.Vec2{X: j, Y: i}).Neighbors4() {
				if !n.In(cols, rows) {
					continue
				}
				if w, ok := l.cells[n.Y][n.X].(Wall); ok && w > corner {
					corner = w
				}
			}
			l.cells[i][j] = corner
		}
	}
}

// Equal сравнивает раскладки поэлементно
func (l *Layout) Equal(other *Layout) bool {
	if other == nil || l.height != other.height || l.width != other.width {
		return false
	}
	for i := range l.cells {
		for j := range l.cells[i] {
			if l.cells[i][j] != other.cells[i][j] {
				return false
			}
		}
	}
	return true
}

// Summary содержит агрегированную статистику раскладки
type Summary struct {
	Height  int            `json:"height"`
	Width   int            `json:"width"`
	Squares map[string]int `json:"squares"` // имя типа -> количество
	Walls   map[string]int `json:"walls"`   // только рёбра, без углов
}

// Summarize подсчитывает клетки и стены по типам
func (l *Layout) Summarize() Summary {
	s := Summary{
		Height:  l.height,
		Width:   l.width,
		Squares: make(map[string]int),
		Walls:   make(map[string]int),
	}
	for i := range l.cells {
		for j, e := range l.cells[i] {
			switch v := e.(type) {
			case Square:
				if st := v.Type(); st != nil {
					s.Squares[st.Name]++
				}
			case Wall:
				if (vec.Vec2{X: j, Y: i}).IsEdge() {
					s.Walls[v.String()]++
				}
			}
		}
	}
	return s
}
