package crud

import "math/rand"

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "

// randomString returns a string whose length is drawn uniformly from
// [minLen, maxLen].
func randomString(minLen, maxLen int) string {
	n := minLen + rand.Intn(maxLen-minLen+1)
	s := make([]byte, n)
	for i := range s {
		s[i] = letters[rand.Intn(len(letters))]
	}
	return string(s)
}
