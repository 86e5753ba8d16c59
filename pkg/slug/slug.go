// Package slug generates human readable names for new workflows.
package slug

import (
	petname "github.com/dustinkirkland/golang-petname"
)

// DefaultWords is the number of words in a generated name.
const DefaultWords = 3

// Generator produces dash separated petnames such as "brave-blue-otter".
type Generator struct {
	words int
}

// NewGenerator returns a generator of names with the given word count.
// Non-positive counts fall back to DefaultWords.
func NewGenerator(words int) *Generator {
	if words <= 0 {
		words = DefaultWords
	}

	return &Generator{words: words}
}

func (g *Generator) Generate() string {
	return petname.Generate(g.words, "-")
}
