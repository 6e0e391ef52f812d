package bankapp

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a one-way credential hash from a plaintext password.
func HashPassword(password string) (string, error) {
	bits, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bits), err
}

// CheckPassword reports whether password matches a previously derived hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
