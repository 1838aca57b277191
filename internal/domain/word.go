package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// WordValidator decides what counts as "one word" and returns the canonical form to store.
type WordValidator interface {
	Validate(raw string) (string, error)
}

// WordPolicy is the default WordValidator. Letters, marks and digits from any
// script are accepted; joiners and trailing punctuation are opt-in.
type WordPolicy struct {
	MaxLength                int
	AllowHyphen              bool
	AllowApostrophe          bool
	AllowTrailingPunctuation bool
}

func DefaultWordPolicy() WordPolicy {
	return WordPolicy{
		MaxLength:                32,
		AllowHyphen:              true,
		AllowApostrophe:          true,
		AllowTrailingPunctuation: true,
	}
}

const trailingPunctuation = ".,!?;:…"

func (p WordPolicy) Validate(raw string) (string, error) {
	word := norm.NFC.String(strings.TrimSpace(raw))
	if word == "" {
		return "", ErrInvalidWord
	}
	if p.MaxLength > 0 && utf8.RuneCountInString(word) > p.MaxLength {
		return "", ErrInvalidWord
	}

	body := word
	if p.AllowTrailingPunctuation {
		body = strings.TrimRight(body, trailingPunctuation)
	}
	if body == "" {
		return "", ErrInvalidWord
	}

	runes := []rune(body)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
			continue
		case p.isJoiner(r):
			// joiners only between two word characters
			if i == 0 || i == len(runes)-1 || p.isJoiner(runes[i-1]) {
				return "", ErrInvalidWord
			}
		default:
			return "", ErrInvalidWord
		}
	}
	return word, nil
}

func (p WordPolicy) isJoiner(r rune) bool {
	switch r {
	case '-', '‐':
		return p.AllowHyphen
	case '\'', '’':
		return p.AllowApostrophe
	}
	return false
}
