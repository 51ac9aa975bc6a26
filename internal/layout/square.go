package layout

import (
	"errors"
	"fmt"
	"sort"
)

// SquareID представляет идентификатор типа клетки
type SquareID uint8

// Константы ID клеток
const (
	EmptySquareID  SquareID = iota // 0
	BlockSquareID                  // 1 - непроходимая клетка
	StartSquareID                  // 2
	GoalSquareID                   // 3
	ArrowSquareID                  // 4 - поворачиваемая
	MirrorSquareID                 // 5 - поворачиваемая
	SwitchSquareID                 // 6
	HoleSquareID                   // 7
)

// SquareTokenLen - длина токена клетки в записи: 2 символа кода + 1 символ поворота.
const SquareTokenLen = 3

// Rotation - поворот клетки в четвертях оборота по часовой стрелке.
type Rotation uint8

// Degrees возвращает поворот в градусах
func (r Rotation) Degrees() int {
	return int(r) * 90
}

// SquareType описывает тип клетки
type SquareType struct {
	ID        SquareID
	Code      string    // ровно 2 символа, как в записи
	Name      string    // человекочитаемое имя
	Rotatable bool      // имеет ли поворот смысл для этого типа
	Glyphs    [4]string // 3-символьное изображение для каждого поворота
}

// ErrInvalidSquare возвращается парсером токенов клеток.
var ErrInvalidSquare = errors.New("invalid square token")

var (
	squaresByID   = make(map[SquareID]*SquareType)
	squaresByCode = make(map[string]*SquareType)
)

// RegisterSquareType добавляет тип клетки в регистр
func RegisterSquareType(st SquareType) error {
	if len(st.Code) != SquareTokenLen-1 {
		return fmt.Errorf("код клетки %q должен быть длиной %d", st.Code, SquareTokenLen-1)
	}
	if _, exists := squaresByCode[st.Code]; exists {
		return fmt.Errorf("код клетки %q уже зарегистрирован", st.Code)
	}
	if _, exists := squaresByID[st.ID]; exists {
		return fmt.Errorf("ID клетки %d уже зарегистрирован", st.ID)
	}

	entry := st
	squaresByID[st.ID] = &entry
	squaresByCode[st.Code] = &entry
	return nil
}

// GetSquareType возвращает тип клетки по ID
func GetSquareType(id SquareID) (*SquareType, bool) {
	st, exists := squaresByID[id]
	return st, exists
}

// SquareTypes возвращает все зарегистрированные типы, отсортированные по ID
func SquareTypes() []*SquareType {
	result := make([]*SquareType, 0, len(squaresByID))
	for _, st := range squaresByID {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func same(glyph string) [4]string {
	return [4]string{glyph, glyph, glyph, glyph}
}

// Регистрируем базовые типы клеток при импорте пакета
func init() {
	builtin := []SquareType{
		{ID: EmptySquareID, Code: "em", Name: "Empty", Glyphs: same("   ")},
		{ID: BlockSquareID, Code: "bl", Name: "Block", Glyphs: same("###")},
		{ID: StartSquareID, Code: "st", Name: "Start", Glyphs: same(" S ")},
		{ID: GoalSquareID, Code: "gl", Name: "Goal", Glyphs: same(" G ")},
		{ID: ArrowSquareID, Code: "ar", Name: "Arrow", Rotatable: true, Glyphs: [4]string{" ^ ", " > ", " v ", " < "}},
		{ID: MirrorSquareID, Code: "mi", Name: "Mirror", Rotatable: true, Glyphs: [4]string{" / ", " \\ ", " / ", " \\ "}},
		{ID: SwitchSquareID, Code: "sw", Name: "Switch", Glyphs: same(" o ")},
		{ID: HoleSquareID, Code: "ho", Name: "Hole", Glyphs: same(" O ")},
	}
	for _, st := range builtin {
		if err := RegisterSquareType(st); err != nil {
			panic(err)
		}
	}
}

// Square - значение клетки в сетке
type Square struct {
	ID       SquareID
	Rotation Rotation
}

// Type возвращает описание типа клетки
func (s Square) Type() *SquareType {
	st, _ := GetSquareType(s.ID)
	return st
}

// Token возвращает 3-символьное представление клетки
func (s Square) Token() string {
	st, ok := GetSquareType(s.ID)
	if !ok {
		return "??" + string(rune('0'+s.Rotation))
	}
	return st.Code + string(rune('0'+s.Rotation))
}

// Glyph возвращает изображение клетки для текстового вывода
func (s Square) Glyph() string {
	st, ok := GetSquareType(s.ID)
	if !ok {
		return " ? "
	}
	return st.Glyphs[s.Rotation%4]
}

// ParseSquare разбирает 3-символьный токен клетки: код типа + цифра поворота 0-3.
func ParseSquare(token string) (Square, error) {
	if len(token) != SquareTokenLen {
		return Square{}, fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidSquare, token, len(token), SquareTokenLen)
	}

	st, exists := squaresByCode[token[:2]]
	if !exists {
		return Square{}, fmt.Errorf("%w: unknown square code %q", ErrInvalidSquare, token[:2])
	}

	r := token[2]
	if r < '0' || r > '3' {
		return Square{}, fmt.Errorf("%w: rotation %q in %q", ErrInvalidSquare, r, token)
	}

	return Square{ID: st.ID, Rotation: Rotation(r - '0')}, nil
}
