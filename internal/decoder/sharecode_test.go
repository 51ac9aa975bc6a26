package decoder

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeShareCode упаковывает запись так же, как это делает клиент редактора
func makeShareCode(t *testing.T, record string) string {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return base64.RawURLEncoding.EncodeToString(enc.EncodeAll([]byte(record), nil))
}

func TestUnwrapShareCode(t *testing.T) {
	code := makeShareCode(t, allEmpty2x2)

	record, err := UnwrapShareCode(code)
	require.NoError(t, err)
	assert.Equal(t, allEmpty2x2, record)

	// Паддинг и пробелы по краям допускаются
	record, err = UnwrapShareCode("  " + code + "==\n")
	require.NoError(t, err)
	assert.Equal(t, allEmpty2x2, record)
}

func TestUnwrapShareCode_Invalid(t *testing.T) {
	for name, code := range map[string]string{
		"empty":      "",
		"not base64": "!!!",
		"not zstd":   base64.RawURLEncoding.EncodeToString([]byte("hello")),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := UnwrapShareCode(code)
			assert.ErrorIs(t, err, ErrInvalidShareCode)
			assert.Equal(t, "invalid_share_code", Classify(err))
		})
	}
}

func TestUnwrapShareCode_TooLarge(t *testing.T) {
	code := makeShareCode(t, strings.Repeat("em0", MaxShareCodeBytes))

	_, err := UnwrapShareCode(code)
	assert.ErrorIs(t, err, ErrInvalidShareCode)
}

func TestDecode_AcceptsRecordAndShareCode(t *testing.T) {
	record := "v2 2x2 st0ar1bl0gl0 de"

	fromRecord, err := Decode(record)
	require.NoError(t, err)

	fromCode, err := Decode(makeShareCode(t, record))
	require.NoError(t, err)

	assert.True(t, fromRecord.Equal(fromCode))
}

func TestDecode_ShareCodeWithBadRecord(t *testing.T) {
	_, err := Decode(makeShareCode(t, "v2 2x2 em0em0em0em0 fg"))
	assert.ErrorIs(t, err, ErrInvalidDigit)

	row, col, ok := Position(err)
	require.True(t, ok)
	assert.Equal(t, 1, row)
	assert.Equal(t, 2, col)
}

func TestLooksLikeRecord(t *testing.T) {
	assert.True(t, LooksLikeRecord(allEmpty2x2))
	assert.False(t, LooksLikeRecord("v2abc"))
	assert.False(t, LooksLikeRecord(makeShareCode(t, allEmpty2x2)))
}

func TestNormalize_TrimsRecord(t *testing.T) {
	record, err := Normalize("  " + allEmpty2x2 + "\n")
	require.NoError(t, err)
	assert.Equal(t, allEmpty2x2, record)

	l, err := Decode("\t" + allEmpty2x2 + "\r\n")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Rows())
}
