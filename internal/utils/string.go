package utils

import "unicode"

// CapitalPositions flags, per rune, whether s has an uppercase letter there.
// It returns nil when s has no uppercase letters.
func CapitalPositions(s string) []bool {
	var positions []bool
	i := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			if positions == nil {
				positions = make([]bool, len([]rune(s)))
			}
			positions[i] = true
		}
		i++
	}
	return positions
}
