package layout

import (
	"bufio"
	"io"
	"strings"
)

// Render выводит раскладку в виде ASCII-схемы.
//
//	клетка             3 символа (Glyph)
//	вертикальная стена '|' сплошная, ':' полустена
//	горизонтальная     '---' сплошная, '- -' полустена
//	угол               '+' сплошной, '.' полустена
func (l *Layout) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var line strings.Builder

	for i := range l.cells {
		line.Reset()
		for j, e := range l.cells[i] {
			line.WriteString(renderElement(i, j, e))
		}
		if _, err := bw.WriteString(strings.TrimRight(line.String(), " ") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// String возвращает ASCII-схему раскладки
func (l *Layout) String() string {
	var sb strings.Builder
	_ = l.Render(&sb)
	return sb.String()
}

func renderElement(row, col int, e Element) string {
	evenRow, evenCol := row%2 == 0, col%2 == 0

	switch v := e.(type) {
	case Square:
		return v.Glyph()
	case Wall:
		switch {
		case evenRow && !evenCol: // вертикальное ребро
			return [...]string{" ", ":", "|"}[v]
		case !evenRow && evenCol: // горизонтальное ребро
			return [...]string{"   ", "- -", "---"}[v]
		default: // угол
			return [...]string{" ", ".", "+"}[v]
		}
	}

	// Незаполненная позиция
	if evenCol {
		return "   "
	}
	return " "
}
