package password

import (
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when no stored hash exists so that the
// caller spends the same bcrypt work either way. It is built at package
// init so the first miss costs no more than later ones.
var dummyHash = mustHash("mtodo-dummy-password")

func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// CompareDummy burns one bcrypt comparison and always fails.
func CompareDummy(plain string) error {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plain))
	return bcrypt.ErrMismatchedHashAndPassword
}

func mustHash(plain string) string {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hashed)
}
