package wallcodec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigitToNibble_RoundTrip(t *testing.T) {
	for n := uint8(0); n < 16; n++ {
		digit := NibbleToDigit(n)
		got, err := DigitToNibble(digit)
		require.NoError(t, err, "цифра %q должна декодироваться", digit)
		assert.Equal(t, n, got, "ниббл для %q", digit)
	}
}

func TestDigitToNibble_Invalid(t *testing.T) {
	for _, c := range []byte{'g', 'A', 'F', ' ', 'x', 0, 0xff} {
		_, err := DigitToNibble(c)
		assert.ErrorIs(t, err, ErrInvalidDigit, "символ %q вне алфавита", c)
	}

	_, err := DigitToNibble('g')
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'g'")
}

func TestExtractWallCode(t *testing.T) {
	for n := uint8(0); n < 16; n++ {
		assert.Equal(t, n&0b11, ExtractWallCode(n, 0), "младшая пара для %04b", n)
		assert.Equal(t, (n>>2)&0b11, ExtractWallCode(n, 1), "старшая пара для %04b", n)
	}
}

func TestCodeToWallKind(t *testing.T) {
	valid := map[uint8]Kind{
		0b01: KindWall,
		0b10: KindHalf,
		0b11: KindEmpty,
	}
	for code, want := range valid {
		got, err := CodeToWallKind(code)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	for _, code := range []uint8{0b00, 0b100, 0xff} {
		_, err := CodeToWallKind(code)
		assert.ErrorIs(t, err, ErrInvalidWallCode, "код %b должен отклоняться", code)
	}
}

func TestKindTag(t *testing.T) {
	assert.Equal(t, "0", KindEmpty.Tag())
	assert.Equal(t, "w", KindWall.Tag())
	assert.Equal(t, "h", KindHalf.Tag())
	assert.Equal(t, "", Kind(42).Tag())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestStream_TokenCountAndOrder(t *testing.T) {
	// 'd' = 0b1101: младшая пара 01 (wall), старшая 11 (empty)
	// '6' = 0b0110: младшая пара 10 (half), старшая 01 (wall)
	s := NewStream("d6")
	assert.Equal(t, 4, s.Len())

	var got []Kind
	for {
		k, err := s.Next()
		if errors.Is(err, ErrExhausted) {
			break
		}
		require.NoError(t, err)
		got = append(got, k)
	}

	assert.Equal(t, []Kind{KindWall, KindEmpty, KindHalf, KindWall}, got)
	assert.Equal(t, 0, s.Remaining())

	// Повторные вызовы после исчерпания не меняют результат
	_, err := s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestStream_AllDigitsYieldTwoTokens(t *testing.T) {
	digits := "ffffffff"
	s := NewStream(digits)
	count := 0
	for {
		k, err := s.Next()
		if err != nil {
			require.ErrorIs(t, err, ErrExhausted)
			break
		}
		assert.Equal(t, KindEmpty, k)
		count++
	}
	assert.Equal(t, 2*len(digits), count)
}

func TestStream_EmptyInput(t *testing.T) {
	s := NewStream("")
	_, err := s.Next()
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 0, s.Remaining())
}

func TestStream_FailsAtTriggeringPull(t *testing.T) {
	s := NewStream("fg")

	// Первая цифра корректна и отдаёт оба токена
	for i := 0; i < 2; i++ {
		k, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, KindEmpty, k)
	}
	assert.Equal(t, 1, s.Offset())

	_, err := s.Next()
	require.ErrorIs(t, err, ErrInvalidDigit)
	assert.Contains(t, err.Error(), "'g'")
	assert.False(t, errors.Is(err, ErrExhausted))

	// Ошибка фиксируется: поток дальше не продвигается
	_, again := s.Next()
	assert.Equal(t, err, again)
	assert.Equal(t, 2, s.Remaining())
}

func TestStream_ReservedCodeInHighPair(t *testing.T) {
	// '3' = 0b0011: младшая пара 11 (empty), старшая 00 (сентинел)
	s := NewStream("3")

	k, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, KindEmpty, k)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrInvalidWallCode)
	assert.Contains(t, err.Error(), "pair 1")
}

func TestStream_ReservedCodeInLowPair(t *testing.T) {
	// 'c' = 0b1100: младшая пара 00
	s := NewStream("c")
	_, err := s.Next()
	assert.ErrorIs(t, err, ErrInvalidWallCode)
	assert.Contains(t, err.Error(), "pair 0")
}
