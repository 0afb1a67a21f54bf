package backup

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/Kargones/apk-restore/internal/pkg/apperrors"
)

// ErrMalformedLSN — код ошибки для некорректного LSN.
// LSN никогда не приводится к нулю молча: некорректное значение — фатальная ошибка
// для базы данных, к которой относится запись.
const ErrMalformedLSN = "BACKUP.MALFORMED_LSN"

// LSN представляет Log Sequence Number — монотонно возрастающий идентификатор
// позиции в журнале транзакций SQL Server.
//
// LSN хранится в msdb как decimal(25,0) и не помещается в uint64,
// поэтому внутри используется math/big.Int. Сравнение всегда числовое,
// никогда лексикографическое (ведущие нули допустимы во входных данных).
//
// Нулевое значение LSN{} означает "не задан" (IsZero() == true) и
// сравнивается как меньшее любого заданного LSN.
type LSN struct {
	n *big.Int
}

// ParseLSN разбирает десятичную строку в LSN.
// Допускаются только цифры (ведущие нули разрешены) с необязательными пробелами по краям.
// Пустая строка или нечисловое значение — ошибка ErrMalformedLSN.
func ParseLSN(s string) (LSN, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return LSN{}, apperrors.NewAppError(ErrMalformedLSN, "пустое значение LSN", nil)
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return LSN{}, apperrors.NewAppError(ErrMalformedLSN,
				fmt.Sprintf("некорректный LSN %q: допустимы только десятичные цифры", s), nil)
		}
	}
	n, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return LSN{}, apperrors.NewAppError(ErrMalformedLSN,
			fmt.Sprintf("некорректный LSN %q", s), nil)
	}
	return LSN{n: n}, nil
}

// MustParseLSN разбирает LSN и паникует при ошибке.
// Используется в тестах и для compile-time известных значений.
func MustParseLSN(s string) LSN {
	l, err := ParseLSN(s)
	if err != nil {
		panic(err)
	}
	return l
}

// LSNFromInt64 создаёт LSN из неотрицательного целого.
// Отрицательное значение трактуется как programming error и вызывает панику.
func LSNFromInt64(v int64) LSN {
	if v < 0 {
		panic(fmt.Sprintf("backup: отрицательный LSN %d", v))
	}
	return LSN{n: big.NewInt(v)}
}

// IsZero сообщает, задан ли LSN.
func (l LSN) IsZero() bool {
	return l.n == nil
}

// Cmp сравнивает два LSN численно.
// Возвращает -1 если l < other, 0 если равны, +1 если l > other.
// Незаданный LSN меньше любого заданного; два незаданных равны.
func (l LSN) Cmp(other LSN) int {
	switch {
	case l.n == nil && other.n == nil:
		return 0
	case l.n == nil:
		return -1
	case other.n == nil:
		return 1
	}
	return l.n.Cmp(other.n)
}

// Equal сообщает о численном равенстве двух LSN.
func (l LSN) Equal(other LSN) bool { return l.Cmp(other) == 0 }

// Less сообщает, что l численно меньше other.
func (l LSN) Less(other LSN) bool { return l.Cmp(other) < 0 }

// GreaterOrEqual сообщает, что l численно не меньше other.
// Именно этот предикат определяет непрерывность цепочки журналов:
// кандидат продолжает цепочку, если его LastLSN >= предыдущего LastLSN
// (нестрогое сравнение — перекрывающиеся журнальные бэкапы допустимы).
func (l LSN) GreaterOrEqual(other LSN) bool { return l.Cmp(other) >= 0 }

// String возвращает десятичное представление LSN ("0" для незаданного).
func (l LSN) String() string {
	if l.n == nil {
		return "0"
	}
	return l.n.String()
}

// MarshalJSON сериализует LSN как десятичную строку.
// Строковое представление защищает от потери точности в потребителях,
// разбирающих JSON числа как float64.
func (l LSN) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON разбирает LSN из JSON строки или числа.
func (l *LSN) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*l = LSN{}
		return nil
	}
	parsed, err := ParseLSN(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// CompareLSN сравнивает два LSN: -1, 0 или +1 (семантика big.Int.Cmp).
func CompareLSN(a, b LSN) int { return a.Cmp(b) }

// MaxLSN возвращает больший из двух LSN.
func MaxLSN(a, b LSN) LSN {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
