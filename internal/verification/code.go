package verification

import (
	"math/rand"
	"strings"
)

var codeWords = []string{
	"apple", "banana", "cherry", "dragon", "elephant",
	"flower", "guitar", "hammer", "island", "jungle",
	"kettle", "lemon", "monkey", "needle", "orange",
	"pencil", "queen", "rabbit", "sunset", "tiger",
	"umbrella", "violin", "window", "yellow", "zebra",
}

// GenerateCode builds the phrase a user must paste into their Roblox
// profile description. Words are easy to copy by hand and survive the
// profile editor's formatting, unlike random token strings.
func GenerateCode(wordCount int) string {
	if wordCount <= 0 {
		wordCount = 3
	}
	selected := make([]string, wordCount)
	for i := range wordCount {
		selected[i] = codeWords[rand.Intn(len(codeWords))]
	}
	return strings.Join(selected, " ")
}
