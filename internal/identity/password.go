package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// MinSecretLength is the shortest initial credential GenerateSecret will produce.
const MinSecretLength = 12

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]{}<>?"
)

var (
	secretClasses = []string{lowerChars, upperChars, digitChars, symbolChars}
	secretCharset = lowerChars + upperChars + digitChars + symbolChars
)

// GenerateSecret returns a random credential of the given length containing at least
// one character from each class. Every draw is uniform over its alphabet.
func GenerateSecret(length int) (string, error) {
	if length < MinSecretLength {
		return "", fmt.Errorf("secret length %d is below minimum %d", length, MinSecretLength)
	}

	out := make([]byte, length)
	for i, class := range secretClasses {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	for i := len(secretClasses); i < length; i++ {
		c, err := pick(secretCharset)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	// Fisher-Yates so the guaranteed characters do not sit at fixed positions.
	for i := length - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

func pick(alphabet string) (byte, error) {
	i, err := randIndex(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}
