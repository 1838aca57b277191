package domain

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrBannedWord = Validation("banned_word")

// Censor is a case-insensitive banned word list. It is not safe for
// concurrent use.
type Censor struct {
	words map[string]struct{}
}

func NewCensor(words ...string) *Censor {
	c := &Censor{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		c.Ban(w)
	}
	return c
}

func censorKey(word string) string {
	word = strings.TrimRight(strings.TrimSpace(word), trailingPunctuation)
	return strings.ToLower(norm.NFC.String(word))
}

// Ban reports whether the list changed.
func (c *Censor) Ban(word string) bool {
	k := censorKey(word)
	if k == "" {
		return false
	}
	if _, ok := c.words[k]; ok {
		return false
	}
	c.words[k] = struct{}{}
	return true
}

func (c *Censor) Unban(word string) bool {
	k := censorKey(word)
	if _, ok := c.words[k]; !ok {
		return false
	}
	delete(c.words, k)
	return true
}

// Blocks matches ignoring case and trailing punctuation, so "Dragon!" is
// caught by a ban on "dragon".
func (c *Censor) Blocks(word string) bool {
	if c == nil || len(c.words) == 0 {
		return false
	}
	_, ok := c.words[censorKey(word)]
	return ok
}

func (c *Censor) Words() []string {
	out := make([]string, 0, len(c.words))
	for w := range c.words {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}
