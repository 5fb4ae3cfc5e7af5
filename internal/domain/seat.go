package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Layouts beyond these bounds fall back to quantity-only selection
const (
	MaxGridRows  = 5000
	MaxGridSeats = 50000
)

// SeatID identifies one seat as "{row}-{number}", e.g. "B-7"
type SeatID string

// NewSeatID builds the id for seat n (1-based) in row
func NewSeatID(row string, n int) SeatID {
	return SeatID(fmt.Sprintf("%s-%d", row, n))
}

// Row returns the row label part of the id
func (s SeatID) Row() string {
	i := strings.LastIndex(string(s), "-")
	if i < 0 {
		return ""
	}
	return string(s[:i])
}

// Number returns the seat number part of the id, 0 when malformed
func (s SeatID) Number() int {
	i := strings.LastIndex(string(s), "-")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(string(s[i+1:]))
	if err != nil {
		return 0
	}
	return n
}

// SeatIDStrings converts ids for wire payloads
func SeatIDStrings(ids []SeatID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// ExpandRows returns the inclusive list of row labels between rowStart and rowEnd.
// Alphabetic bounds use spreadsheet-style labels (A..Z, AA, AB, ...); anything else
// must parse as integers. The result is always ascending. An empty slice means the
// layout is unusable: a missing bound, seatsPerRow <= 0, unparseable, mixed or
// negative bounds, more than MaxGridRows rows or more than MaxGridSeats seats.
func ExpandRows(rowStart, rowEnd string, seatsPerRow int) []string {
	start := strings.ToUpper(strings.TrimSpace(rowStart))
	end := strings.ToUpper(strings.TrimSpace(rowEnd))
	if start == "" || end == "" || seatsPerRow <= 0 || seatsPerRow > MaxGridSeats {
		return nil
	}

	rows := parseRows(start, end)
	if len(rows) > MaxGridSeats/seatsPerRow {
		return nil
	}
	return rows
}

func parseRows(start, end string) []string {
	if isAlphaLabel(start) && isAlphaLabel(end) {
		lo, okLo := decodeRowLabel(start)
		hi, okHi := decodeRowLabel(end)
		if !okLo || !okHi {
			return nil
		}
		return expand(lo, hi, RowLabel)
	}

	lo, errLo := strconv.Atoi(start)
	hi, errHi := strconv.Atoi(end)
	if errLo != nil || errHi != nil || lo < 0 || hi < 0 {
		return nil
	}
	return expand(lo, hi, strconv.Itoa)
}

// expand labels lo..hi (in either order). Both bounds are non-negative, so the
// span cannot overflow and iterating by offset stops even when hi is MaxInt.
func expand(lo, hi int, label func(int) string) []string {
	if lo > hi {
		lo, hi = hi, lo
	}
	span := hi - lo
	if span >= MaxGridRows {
		return nil
	}
	rows := make([]string, 0, span+1)
	for i := 0; i <= span; i++ {
		rows = append(rows, label(lo+i))
	}
	return rows
}

// SeatGrid expands a layout into seat ids, row-major, seats numbered 1..seatsPerRow
func SeatGrid(rowStart, rowEnd string, seatsPerRow int) []SeatID {
	rows := ExpandRows(rowStart, rowEnd, seatsPerRow)
	if len(rows) == 0 {
		return nil
	}
	seats := make([]SeatID, 0, len(rows)*seatsPerRow)
	for _, row := range rows {
		for n := 1; n <= seatsPerRow; n++ {
			seats = append(seats, NewSeatID(row, n))
		}
	}
	return seats
}

// RowLabel encodes a 1-based row index as a letter label: 1=A, 26=Z, 27=AA
func RowLabel(n int) string {
	if n <= 0 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append(b, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// decodeRowLabel is the inverse of RowLabel; labels long enough to overflow are rejected
func decodeRowLabel(label string) (int, bool) {
	if len(label) > 6 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		n = n*26 + int(label[i]-'A'+1)
	}
	return n, true
}

func isAlphaLabel(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return s != ""
}
