package scan

import (
	"fmt"
	"strings"
)

// SeatGrid expands a row range such as "A-D" (or a single letter) and a
// column count into seat ids in row-major order: A1..A4, B1..B4, ...
func SeatGrid(rows string, cols int) ([]string, error) {
	first, last, err := parseRowRange(rows)
	if err != nil {
		return nil, err
	}
	if cols < 1 || cols > 99 {
		return nil, fmt.Errorf("cols must be between 1 and 99, got %d", cols)
	}
	ids := make([]string, 0, int(last-first+1)*cols)
	for r := first; r <= last; r++ {
		for c := 1; c <= cols; c++ {
			ids = append(ids, fmt.Sprintf("%c%d", r, c))
		}
	}
	return ids, nil
}

// LockerRange returns zero-padded locker ids 001..n.
func LockerRange(n int) ([]string, error) {
	if n < 0 || n > 999 {
		return nil, fmt.Errorf("locker count must be between 0 and 999, got %d", n)
	}
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, fmt.Sprintf("%03d", i))
	}
	return ids, nil
}

func parseRowRange(s string) (byte, byte, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	isLetter := func(b byte) bool { return b >= 'A' && b <= 'Z' }
	switch {
	case len(s) == 1 && isLetter(s[0]):
		return s[0], s[0], nil
	case len(s) == 3 && s[1] == '-' && isLetter(s[0]) && isLetter(s[2]) && s[0] <= s[2]:
		return s[0], s[2], nil
	}
	return 0, 0, fmt.Errorf("invalid row range %q (want e.g. A-D)", s)
}
