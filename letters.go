package main

import (
	"crypto/rand"
	"fmt"
)

// alphabet is the set of letters a round can draw from. K, W, X and Y are
// left out: words starting with them are too rare in Portuguese to be fair.
var alphabet = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "L",
	"M", "N", "O", "P", "Q", "R", "S", "T", "U", "V", "Z",
}

// drawLetter picks a random letter that has not been used in this room yet.
// Once every letter has been drawn, the used set resets and the cycle
// restarts transparently. Returns the drawn letter and the updated used set.
func drawLetter(used []string) (string, []string, error) {
	usedSet := make(map[string]bool, len(used))
	for _, letter := range used {
		usedSet[letter] = true
	}

	candidates := make([]string, 0, len(alphabet))
	for _, letter := range alphabet {
		if !usedSet[letter] {
			candidates = append(candidates, letter)
		}
	}

	if len(candidates) == 0 {
		candidates = append(candidates, alphabet...)
		used = used[:0]
	}

	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", used, fmt.Errorf("draw letter: %w", err)
	}
	letter := candidates[int(b[0])%len(candidates)]

	return letter, append(used, letter), nil
}
