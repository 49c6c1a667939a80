package router

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// PageNumber parses a page segment such as "page3" or "3". It returns 0
// when raw holds no number; callers clamp the result into their range.
// Numbers too large for an int saturate at math.MaxInt or math.MinInt.
func PageNumber(raw string) int {
	raw = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "page")
	n, err := strconv.Atoi(raw)
	switch {
	case errors.Is(err, strconv.ErrRange) && strings.HasPrefix(raw, "-"):
		return math.MinInt
	case errors.Is(err, strconv.ErrRange):
		return math.MaxInt
	case err != nil:
		return 0
	}
	return n
}
