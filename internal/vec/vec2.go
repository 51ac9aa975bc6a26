package vec

// Vec2 представляет координаты в чередующейся сетке раскладки:
// X - столбец, Y — строка.
type Vec2 struct {
	X, Y int
}

// IsSquare возвращает true для клетки-квадрата (обе координаты чётные)
func (v Vec2) IsSquare() bool {
	return v.X%2 == 0 && v.Y%2 == 0
}

// IsEdge возвращает true для ребра между клетками (ровно одна координата чётная)
func (v Vec2) IsEdge() bool {
	return (v.X%2 == 0) != (v.Y%2 == 0)
}

// IsCorner возвращает true для угла (обе координаты нечётные)
func (v Vec2) IsCorner() bool {
	return v.X%2 != 0 && v.Y%2 != 0
}

// Add возвращает сумму векторов
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Directions4 - сдвиги вверх, вправо, вниз и влево
var Directions4 = [4]Vec2{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

// Neighbors4 возвращает соседей сверху, справа, снизу и слева (без проверки границ)
func (v Vec2) Neighbors4() [4]Vec2 {
	var out [4]Vec2
	for i, d := range Directions4 {
		out[i] = v.Add(d)
	}
	return out
}

// In проверяет, что точка лежит в прямоугольнике [0,cols) x [0,rows)
func (v Vec2) In(cols, rows int) bool {
	return v.X >= 0 && v.Y >= 0 && v.X < cols && v.Y < rows
}
