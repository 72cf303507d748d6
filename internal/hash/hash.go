package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

type Hasher struct {
	cost int
	// dummy is compared against when there is no stored hash, so a missing
	// user costs the same as a wrong password.
	dummy []byte
}

func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &Hasher{cost: cost, dummy: dummy}, nil
}

func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

// CheckPassword never returns an error: a malformed hash is a mismatch.
func (h *Hasher) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnCompare runs a comparison against the dummy hash and always reports false.
func (h *Hasher) BurnCompare(password string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return false
}
