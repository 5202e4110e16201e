package scoring

import "math/rand"

// Shuffle returns a Fisher-Yates permuted copy of the input order using the
// provided random source. The source is injected so a session can reproduce
// its ordering from a stored seed.
func Shuffle[T any](items []T, rng *rand.Rand) []T {
	shuffled := make([]T, len(items))
	copy(shuffled, items)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// ShuffleOptions permutes MCQ option texts and returns the shuffled options
// together with the new index of the original correct option. The original
// index stays server-side for audit.
func ShuffleOptions(options []string, correctIndex int, rng *rand.Rand) ([]string, int) {
	if len(options) == 0 {
		return nil, correctIndex
	}

	order := make([]int, len(options))
	for i := range order {
		order[i] = i
	}
	order = Shuffle(order, rng)

	shuffled := make([]string, len(options))
	remapped := correctIndex
	for position, original := range order {
		shuffled[position] = options[original]
		if original == correctIndex {
			remapped = position
		}
	}
	return shuffled, remapped
}
