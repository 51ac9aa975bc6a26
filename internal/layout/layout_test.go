package layout

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayout_Dimensions(t *testing.T) {
	l := New(3, 4)

	assert.Equal(t, 3, l.Height())
	assert.Equal(t, 4, l.Width())
	assert.Equal(t, 5, l.Rows(), "строк должно быть 2*height-1")
	assert.Equal(t, 7, l.Cols(), "столбцов должно быть 2*width-1")

	empty := New(0, 5)
	assert.Equal(t, 0, empty.Rows())
	assert.Nil(t, empty.Element(0, 0))
}

func TestSetElement_PositionRules(t *testing.T) {
	l := New(2, 2)

	require.NoError(t, l.SetElement(0, 0, Square{ID: StartSquareID}))
	require.NoError(t, l.SetElement(0, 1, WallFull))
	require.NoError(t, l.SetElement(1, 1, WallHalf), "угол принимает стену")

	assert.ErrorIs(t, l.SetElement(0, 1, Square{ID: GoalSquareID}), ErrPositionMismatch)
	assert.ErrorIs(t, l.SetElement(2, 2, WallFull), ErrPositionMismatch)
	assert.ErrorIs(t, l.SetElement(3, 0, WallFull), ErrOutOfBounds)
	assert.ErrorIs(t, l.SetElement(0, -1, WallFull), ErrOutOfBounds)

	sq, ok := l.SquareAt(0, 0)
	require.True(t, ok)
	assert.Equal(t, StartSquareID, sq.ID)

	w, ok := l.WallAt(0, 1)
	require.True(t, ok)
	assert.Equal(t, WallFull, w)
}

func TestFixCornerWalls_StrongestNeighbour(t *testing.T) {
	l := New(2, 3) // сетка 3x5, углы (1,1) и (1,3)

	for _, pos := range [][2]int{{0, 1}, {0, 3}, {1, 0}, {1, 2}, {1, 4}, {2, 1}, {2, 3}} {
		require.NoError(t, l.SetElement(pos[0], pos[1], WallEmpty))
	}
	require.NoError(t, l.SetElement(1, 0, WallHalf))
	require.NoError(t, l.SetElement(0, 3, WallFull))
	require.NoError(t, l.SetElement(1, 2, WallHalf))

	l.FixCornerWalls()

	left, _ := l.WallAt(1, 1)
	right, _ := l.WallAt(1, 3)
	assert.Equal(t, WallHalf, left, "соседи слева: полустены")
	assert.Equal(t, WallFull, right, "сверху справа сплошная стена")
}

func TestFixCornerWalls_AllEmpty(t *testing.T) {
	l := New(3, 3)
	for i := 0; i < l.Rows(); i++ {
		for j := 0; j < l.Cols(); j++ {
			if (i+j)%2 == 1 {
				require.NoError(t, l.SetElement(i, j, WallEmpty))
			}
		}
	}
	l.FixCornerWalls()

	for i := 1; i < l.Rows(); i += 2 {
		for j := 1; j < l.Cols(); j += 2 {
			w, ok := l.WallAt(i, j)
			require.True(t, ok, "угол (%d,%d) должен быть заполнен", i, j)
			assert.Equal(t, WallEmpty, w)
		}
	}
}

func TestParseSquare(t *testing.T) {
	sq, err := ParseSquare("ar2")
	require.NoError(t, err)
	assert.Equal(t, ArrowSquareID, sq.ID)
	assert.Equal(t, Rotation(2), sq.Rotation)
	assert.Equal(t, 180, sq.Rotation.Degrees())
	assert.Equal(t, "ar2", sq.Token())
	assert.Equal(t, " v ", sq.Glyph())

	for _, bad := range []string{"", "ar", "ar21", "zz0", "ar4", "ar-", "AR0"} {
		_, err := ParseSquare(bad)
		assert.ErrorIs(t, err, ErrInvalidSquare, "токен %q должен отклоняться", bad)
	}
}

func TestRegisterSquareType_Conflicts(t *testing.T) {
	assert.Error(t, RegisterSquareType(SquareType{ID: 200, Code: "em"}), "код уже занят")
	assert.Error(t, RegisterSquareType(SquareType{ID: EmptySquareID, Code: "qq"}), "ID уже занят")
	assert.Error(t, RegisterSquareType(SquareType{ID: 201, Code: "abc"}), "неверная длина кода")

	types := SquareTypes()
	require.GreaterOrEqual(t, len(types), 8)
	assert.Equal(t, EmptySquareID, types[0].ID)
}

func TestParseWallTag(t *testing.T) {
	for tag, want := range map[string]Wall{"0": WallEmpty, "w": WallFull, "h": WallHalf} {
		got, err := ParseWallTag(tag)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, tag, got.Token())
	}

	_, err := ParseWallTag("x")
	assert.ErrorIs(t, err, ErrInvalidWall)
}

func buildSample(t *testing.T) *Layout {
	t.Helper()
	l := New(2, 2)
	require.NoError(t, l.SetElement(0, 0, Square{ID: StartSquareID}))
	require.NoError(t, l.SetElement(0, 2, Square{ID: ArrowSquareID, Rotation: 1}))
	require.NoError(t, l.SetElement(2, 0, Square{ID: BlockSquareID}))
	require.NoError(t, l.SetElement(2, 2, Square{ID: GoalSquareID}))
	require.NoError(t, l.SetElement(0, 1, WallFull))
	require.NoError(t, l.SetElement(1, 0, WallEmpty))
	require.NoError(t, l.SetElement(1, 2, WallHalf))
	require.NoError(t, l.SetElement(2, 1, WallEmpty))
	l.FixCornerWalls()
	return l
}

func TestSnapshot_RoundTrip(t *testing.T) {
	l := buildSample(t)

	data, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cells":[["st0","w","ar1"]`)

	var restored Layout
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.True(t, l.Equal(&restored), "восстановленная раскладка должна совпадать")
}

func TestFromSnapshot_Invalid(t *testing.T) {
	_, err := FromSnapshot(Snapshot{Height: 2, Width: 2, Cells: [][]string{{"st0", "w", "em0"}}})
	assert.Error(t, err, "не хватает строк")

	_, err = FromSnapshot(Snapshot{Height: 1, Width: 1, Cells: [][]string{{"w"}}})
	assert.ErrorIs(t, err, ErrInvalidSquare)
}

func TestSummarize(t *testing.T) {
	s := buildSample(t).Summarize()

	assert.Equal(t, 1, s.Squares["Start"])
	assert.Equal(t, 1, s.Squares["Goal"])
	assert.Equal(t, 2, s.Walls["empty"])
	assert.Equal(t, 1, s.Walls["wall"])
	assert.Equal(t, 1, s.Walls["half"], "углы не учитываются")
}

func TestRender(t *testing.T) {
	out := buildSample(t).String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, " S | > ", lines[0]+" ", "первая строка: старт, стена, стрелка вправо")
	assert.Equal(t, "   +- -", lines[1])
	assert.Equal(t, "###  G", lines[2])
}
