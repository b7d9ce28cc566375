package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost стандартная сложность bcrypt
	DefaultBcryptCost = 12
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrNoPassword      = errors.New("dashboard password is not configured")
)

// PasswordChecker проверяет общий пароль дашборда: открытым текстом
// в постоянном времени или по bcrypt-хешу, если он задан
type PasswordChecker struct {
	plain []byte
	hash  []byte
}

// NewPasswordChecker создает проверку; hash имеет приоритет над plain
func NewPasswordChecker(plain, hash string) *PasswordChecker {
	c := &PasswordChecker{}
	if hash != "" {
		c.hash = []byte(hash)
	} else if plain != "" {
		c.plain = []byte(plain)
	}
	return c
}

// Verify возвращает nil, если пароль совпадает
func (c *PasswordChecker) Verify(password string) error {
	switch {
	case c.hash != nil:
		if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
			return ErrInvalidPassword
		}
		return nil
	case c.plain != nil:
		if subtle.ConstantTimeCompare(c.plain, []byte(password)) != 1 {
			return ErrInvalidPassword
		}
		return nil
	default:
		return ErrNoPassword
	}
}

// HashPassword хеширует пароль для ANALYTICS_PASSWORD_HASH
func HashPassword(password string, cost int) (string, error) {
	if len(password) == 0 {
		return "", ErrInvalidPassword
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}
