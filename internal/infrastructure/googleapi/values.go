package googleapi

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

const DateLayout = "2006-01-02"

// ParseInt reads a count that reports may render as "123" or "123.0".
func ParseInt(raw string) (int64, error) {
	f, err := ParseFloat(raw)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

func ParseFloat(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.WrapError(domain.ErrTemporary, "parse report value", fmt.Errorf("%q: %w", raw, err))
	}
	return f, nil
}
