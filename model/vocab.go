package model

import (
	"bufio"
	"os"

	"github.com/unixpickle/essentials"
)

// Special vocabulary entries.
//
// PadToken fills padded positions; UnkToken stands in for
// out-of-vocabulary tokens.
const (
	PadToken = "<pad>"
	UnkToken = "<unk>"
)

// A Vocabulary maps tokens to embedding rows.
type Vocabulary struct {
	Tokens []string
	IDs    map[string]int
}

// NewVocabulary builds a Vocabulary from a token list,
// prepending the PadToken and UnkToken entries when the
// list does not already start with them.
func NewVocabulary(tokens []string) *Vocabulary {
	if len(tokens) < 2 || tokens[0] != PadToken || tokens[1] != UnkToken {
		tokens = append([]string{PadToken, UnkToken}, tokens...)
	}
	ids := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		ids[tok] = i
	}
	return &Vocabulary{Tokens: tokens, IDs: ids}
}

// LoadVocabulary reads a vocabulary file with one token
// per line.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load vocabulary", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("load vocabulary", err)
	}
	return NewVocabulary(tokens), nil
}

// Size returns the number of entries.
func (v *Vocabulary) Size() int {
	return len(v.Tokens)
}

// ID returns the index for a token, falling back to the
// UnkToken entry.
func (v *Vocabulary) ID(token string) int {
	if id, ok := v.IDs[token]; ok {
		return id
	}
	return v.IDs[UnkToken]
}
