package casts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Test Cast":                 "test-cast",
		"  Sins o' the Flesh  ":     "sins-o-the-flesh",
		"Crème Brûlée Players":      "creme-brulee-players",
		"---Already--Hyphenated---": "already-hyphenated",
		"Midnight @ The Strand 2":   "midnight-the-strand-2",
		"!!!":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}
