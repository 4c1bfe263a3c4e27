package options

import (
	"errors"
	"strconv"
	"strings"
)

// ErrFormat is returned for vector literals that do not start with '{'.
var ErrFormat = errors.New("input does not start with a curly brace")

// ParseVector parses a brace-delimited, comma-separated list of numbers such
// as "{0, 170, 5}". Parsing stops at the first token that is not a number,
// so the closing brace is optional. The length is not checked.
func ParseVector(s string) ([]float64, error) {
	if !strings.HasPrefix(s, "{") {
		return []float64{}, ErrFormat
	}

	values := []float64{}
	rest := s[1:]
	for {
		v, n, ok := scanFloat(rest)
		if !ok {
			return values, nil
		}
		values = append(values, v)
		rest = rest[n:]
		if strings.HasPrefix(rest, ",") {
			rest = rest[1:]
		}
	}
}

// scanFloat reads the longest decimal number at the start of s, after
// leading whitespace. It returns the value and the number of bytes consumed.
func scanFloat(s string) (float64, int, bool) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	start := i

	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, 0, false
	}

	// Exponent only counts when digits follow it
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}

	v, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return 0, 0, false
	}
	return v, i, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
