package registry

import "math/rand"

// codeWords is the themed pool room codes are drawn from. Every word is
// lowercase, 2-4 letters, so codes always look like "bear-lamp".
var codeWords = []string{
	"owl", "fox", "bear", "wolf", "bat", "elk", "ram", "toad",
	"crow", "lynx", "boar", "hawk", "newt", "moth", "wasp", "frog",
	"hare", "mole", "dove", "swan", "crab", "pike", "wren", "stag",
	"lamp", "gate", "rock", "tree", "moss", "fern", "dust", "ash",
	"oak", "elm", "ivy", "peak", "glen", "ford", "keep", "well",
	"yard", "mill", "barn", "pond", "reed", "dune", "bog", "fen",
}

// generateCode draws two words with replacement and re-rolls the second
// until it differs from the first. Collisions with active rooms are the
// caller's problem (it retries the whole draw).
func generateCode(rng *rand.Rand) string {
	first := codeWords[rng.Intn(len(codeWords))]
	second := first
	for second == first {
		second = codeWords[rng.Intn(len(codeWords))]
	}
	return first + "-" + second
}
