package layout

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/layoutd/internal/vec"
)

// Snapshot - JSON-представление раскладки для кеша и API.
// Cells повторяет чередующуюся сетку; пустая строка означает незаполненную позицию.
type Snapshot struct {
	Height int        `json:"height"`
	Width  int        `json:"width"`
	Cells  [][]string `json:"cells"`
}

// Snapshot создаёт снимок раскладки
func (l *Layout) Snapshot() Snapshot {
	snap := Snapshot{
		Height: l.height,
		Width:  l.width,
		Cells:  make([][]string, len(l.cells)),
	}
	for i := range l.cells {
		row := make([]string, len(l.cells[i]))
		for j, e := range l.cells[i] {
			if e != nil {
				row[j] = e.Token()
			}
		}
		snap.Cells[i] = row
	}
	return snap
}

// FromSnapshot восстанавливает раскладку из снимка
func FromSnapshot(snap Snapshot) (*Layout, error) {
	l := New(snap.Height, snap.Width)
	if len(snap.Cells) != l.Rows() {
		return nil, fmt.Errorf("снимок содержит %d строк, ожидалось %d", len(snap.Cells), l.Rows())
	}

	for i, row := range snap.Cells {
		if len(row) != l.Cols() {
			return nil, fmt.Errorf("строка %d содержит %d позиций, ожидалось %d", i, len(row), l.Cols())
		}
		for j, token := range row {
			if token == "" {
				continue
			}

			var e Element
			var err error
			if (vec.Vec2{X: j, Y: i}).IsSquare() {
				e, err = ParseSquare(token)
			} else {
				e, err = ParseWallTag(token)
			}
			if err != nil {
				return nil, fmt.Errorf("позиция (%d,%d): %w", i, j, err)
			}
			if err := l.SetElement(i, j, e); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

// MarshalJSON сериализует раскладку через снимок
func (l *Layout) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Snapshot())
}

// UnmarshalJSON восстанавливает раскладку из снимка
func (l *Layout) UnmarshalJSON(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	restored, err := FromSnapshot(snap)
	if err != nil {
		return err
	}
	*l = *restored
	return nil
}
