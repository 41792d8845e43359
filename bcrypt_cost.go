//go:build !race

package auth

func passwordHashCost() int {
	// Cost 12 keeps verification in the tens of milliseconds on current
	// hardware while staying expensive for offline brute force.
	return 12
}
