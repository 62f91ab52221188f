package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	digitChars = "0123456789"

	GeneratedPasswordLength = 8
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GeneratePassword returns a random password holding at least one upper-case
// letter, one lower-case letter and one digit.
func GeneratePassword() (string, error) {
	buf := make([]byte, 0, GeneratedPasswordLength)
	for _, set := range []string{upperChars, lowerChars, digitChars} {
		ch, err := randomChar(set)
		if err != nil {
			return "", err
		}
		buf = append(buf, ch)
	}
	for len(buf) < GeneratedPasswordLength {
		ch, err := randomChar(upperChars + lowerChars)
		if err != nil {
			return "", err
		}
		buf = append(buf, ch)
	}

	// Fisher-Yates so the guaranteed classes are not always in front.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle password: %w", err)
		}
		buf[i], buf[j.Int64()] = buf[j.Int64()], buf[i]
	}
	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("generate password: %w", err)
	}
	return set[n.Int64()], nil
}
