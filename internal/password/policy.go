// Package password implements the password policy shared by the signup form
// and the reset endpoint.
package password

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MinLength = 12
	MaxLength = 128
	// MinClasses is how many of lower, upper, digit, symbol must appear.
	MinClasses = 3
)

// Policy violations, checked in this order.  The messages are shown to users.
var (
	ErrTooShort   = errors.New("Password must be at least 12 characters")
	ErrTooLong    = errors.New("Password is too long")
	ErrRepeated   = errors.New("Don't repeat characters 3+ times (e.g. 'aaa')")
	ErrSequential = errors.New("Don't use sequences (e.g. 123, abc)")
	ErrComplexity = errors.New("Mix upper, lower, numbers, symbols (3+ types)")
)

// IsPolicyError reports whether err is one of the policy violations.
func IsPolicyError(err error) bool {
	for _, e := range []error{ErrTooShort, ErrTooLong, ErrRepeated, ErrSequential, ErrComplexity} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Check returns the first policy violation of p, or nil when p is acceptable.
// Length is counted in characters, not bytes.
func Check(p string) error {
	n := utf8.RuneCountInString(p)
	if n < MinLength {
		return ErrTooShort
	}
	if n > MaxLength {
		return ErrTooLong
	}
	if hasRepeat(p) {
		return ErrRepeated
	}
	if hasSequence(p) {
		return ErrSequential
	}
	if classes(p) < MinClasses {
		return ErrComplexity
	}
	return nil
}

// Strength labels for UI feedback.
const (
	Weak   = "Weak"
	Medium = "Medium"
	Strong = "Strong"
)

// Strength grades p: Strong when it passes Check, Medium when it is at least
// 8 characters long but fails a rule, Weak otherwise.  Empty input yields "".
func Strength(p string) string {
	if p == "" {
		return ""
	}
	if Check(p) == nil {
		return Strong
	}
	if utf8.RuneCountInString(p) >= 8 {
		return Medium
	}
	return Weak
}

// hasRepeat reports a run of three identical characters.
func hasRepeat(p string) bool {
	r := []rune(p)
	for i := 0; i+2 < len(r); i++ {
		if r[i] == r[i+1] && r[i+1] == r[i+2] {
			return true
		}
	}
	return false
}

// hasSequence reports three consecutive ascending code points, ignoring case
// (so "aBc" and "789" both count).
func hasSequence(p string) bool {
	r := []rune(strings.ToLower(p))
	for i := 0; i+2 < len(r); i++ {
		if r[i]+1 == r[i+1] && r[i+1]+1 == r[i+2] {
			return true
		}
	}
	return false
}

func classes(p string) int {
	var lower, upper, digit, symbol bool
	for _, c := range p {
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	n := 0
	for _, b := range []bool{lower, upper, digit, symbol} {
		if b {
			n++
		}
	}
	return n
}
