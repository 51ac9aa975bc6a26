package wallcodec

import (
	"errors"
	"fmt"
)

// ErrExhausted возвращается, когда все цифры уже прочитаны.
// Это не ошибка декодирования: поток просто закончился.
var ErrExhausted = errors.New("wall stream exhausted")

// Stream - ленивый однопроходный источник типов стен поверх строки hex-цифр.
// Каждая цифра даёт две стены: сначала младшую пару бит, затем старшую.
// Ничего не декодируется заранее: повреждённая цифра обнаруживается ровно
// на том Next, который до неё дошёл.
type Stream struct {
	digits string
	pos    int   // индекс следующего токена (не цифры)
	err    error // первая ошибка декодирования, дальше поток отдаёт только её
}

// NewStream создаёт поток для строки цифр. Поток не перезапускается.
func NewStream(digits string) *Stream {
	return &Stream{digits: digits}
}

// Next возвращает следующий тип стены.
func (s *Stream) Next() (Kind, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.pos >= len(s.digits)*WallsPerDigit {
		return 0, ErrExhausted
	}

	offset := s.pos / WallsPerDigit
	index := s.pos % WallsPerDigit

	nibble, err := DigitToNibble(s.digits[offset])
	if err != nil {
		s.err = fmt.Errorf("digit %d: %w", offset, err)
		return 0, s.err
	}

	kind, err := CodeToWallKind(ExtractWallCode(nibble, index))
	if err != nil {
		s.err = fmt.Errorf("digit %d (%q) pair %d: %w", offset, s.digits[offset], index, err)
		return 0, s.err
	}

	s.pos++
	return kind, nil
}

// Remaining возвращает количество ещё не прочитанных токенов.
func (s *Stream) Remaining() int {
	return len(s.digits)*WallsPerDigit - s.pos
}

// Offset возвращает индекс цифры, которую прочитает следующий Next.
func (s *Stream) Offset() int {
	return s.pos / WallsPerDigit
}

// Len возвращает общее количество токенов в потоке.
func (s *Stream) Len() int {
	return len(s.digits) * WallsPerDigit
}
