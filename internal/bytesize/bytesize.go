// Package bytesize reads and writes byte sizes such as "1Mi", "256KiB" or
// "64MB".
package bytesize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ByteSize is a size in bytes. It decodes from plain numbers or from a
// number with a binary (Ki, Mi, Gi, Ti, optionally followed by B) or
// decimal (K, M, G, T, optionally followed by B) unit, case-insensitive.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// binaryUnits is ordered largest first for formatting.
var binaryUnits = []struct {
	suffix string
	size   ByteSize
}{
	{"Ti", TiB},
	{"Gi", GiB},
	{"Mi", MiB},
	{"Ki", KiB},
}

func unitSize(unit string) (ByteSize, bool) {
	unit = strings.TrimSuffix(strings.ToLower(unit), "b")
	switch unit {
	case "":
		return B, true
	case "k":
		return KB, true
	case "m":
		return MB, true
	case "g":
		return GB, true
	case "t":
		return TB, true
	case "ki":
		return KiB, true
	case "mi":
		return MiB, true
	case "gi":
		return GiB, true
	case "ti":
		return TiB, true
	}
	return 0, false
}

// ParseByteSize parses s. Fractions are allowed with a unit ("1.5Mi") and
// are truncated to whole bytes.
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(trimmed, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := trimmed, ""
	if split >= 0 {
		number, unit = trimmed[:split], strings.TrimSpace(trimmed[split:])
	}
	if number == "" || strings.HasPrefix(number, ".") || strings.HasSuffix(number, ".") {
		return 0, fmt.Errorf("invalid byte size format: %q", s)
	}

	size, ok := unitSize(unit)
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	if !strings.Contains(number, ".") {
		n, err := strconv.ParseUint(number, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in byte size: %q", number)
		}
		if n > math.MaxUint64/uint64(size) {
			return 0, fmt.Errorf("byte size overflows: %q", s)
		}
		return ByteSize(n) * size, nil
	}

	f, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number in byte size: %q", number)
	}
	total := f * float64(size)
	if total >= math.MaxUint64 {
		return 0, fmt.Errorf("byte size overflows: %q", s)
	}
	return ByteSize(total), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText implements encoding.TextMarshaler. The largest binary unit
// that divides the size exactly is used, so the text parses back to the
// same value.
func (b ByteSize) MarshalText() ([]byte, error) {
	for _, u := range binaryUnits {
		if b >= u.size && b%u.size == 0 {
			return []byte(strconv.FormatUint(uint64(b/u.size), 10) + u.suffix), nil
		}
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

// String returns the size in the largest binary unit it reaches, with two
// decimals unless the size is a whole number of that unit: "1Mi",
// "1.50Gi", "512B".
func (b ByteSize) String() string {
	for _, u := range binaryUnits {
		if b < u.size {
			continue
		}
		if b%u.size == 0 {
			return strconv.FormatUint(uint64(b/u.size), 10) + u.suffix
		}
		return strconv.FormatFloat(float64(b)/float64(u.size), 'f', 2, 64) + u.suffix
	}
	return strconv.FormatUint(uint64(b), 10) + "B"
}

// Uint64 returns the size as a uint64.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}

// Int64 returns the size as an int64, saturating at math.MaxInt64.
func (b ByteSize) Int64() int64 {
	if b > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(b)
}
