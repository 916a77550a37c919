package domain

// NumberingState is the carrier sequence that survives across runs.
type NumberingState struct {
	LastNumber int    `json:"lastNumber"`
	LastLetter string `json:"lastLetter"`
}

// NextLetter returns the letter that follows current in the sequence
// a, b, ..., z, aa, ab, ..., zz, aaa. The empty string is followed by "a".
func NextLetter(current string) string {
	if current == "" {
		return "a"
	}
	letters := []byte(current)
	for i := len(letters) - 1; i >= 0; i-- {
		c := letters[i]
		if c < 'a' || c > 'z' {
			return "a"
		}
		if c < 'z' {
			letters[i] = c + 1
			return string(letters)
		}
		letters[i] = 'a'
	}
	return "a" + string(letters)
}
