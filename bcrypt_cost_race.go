//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Drop to the minimum cost in race-enabled builds so test suites can
	// run with strict timeouts.
	return bcrypt.MinCost
}
