// Package codec converts numeric link ids to and from compact base62 codes.
package codec

import (
	"errors"
	"math"
)

// Alphabet maps digit values 0..61 to characters, most significant first.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = uint64(len(Alphabet))

var (
	ErrInvalidCharacter = errors.New("codec: invalid character")
	ErrEmptyInput       = errors.New("codec: empty input")
	ErrOverflow         = errors.New("codec: value out of range")
)

// digitValues is the reverse lookup of Alphabet; -1 marks characters
// outside the alphabet.
var digitValues = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		t[Alphabet[i]] = int8(i)
	}
	return t
}()

// Encode returns the base62 representation of num.
func Encode(num uint64) string {
	if num == 0 {
		return string(Alphabet[0])
	}
	// 11 digits cover math.MaxUint64
	var buf [11]byte
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = Alphabet[num%base]
		num /= base
	}
	return string(buf[i:])
}

// Decode is the inverse of Encode.
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, ErrEmptyInput
	}
	var num uint64
	for i := 0; i < len(s); i++ {
		d := digitValues[s[i]]
		if d < 0 {
			return 0, ErrInvalidCharacter
		}
		if num > (math.MaxUint64-uint64(d))/base {
			return 0, ErrOverflow
		}
		num = num*base + uint64(d)
	}
	return num, nil
}
