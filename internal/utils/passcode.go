package utils

import "golang.org/x/crypto/bcrypt"

// HashPasscode returns the bcrypt hash of the admin passcode. A cost outside
// bcrypt's range falls back to bcrypt.DefaultCost.
func HashPasscode(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPasscode compares in constant time.
func VerifyPasscode(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
