package naming

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

const (
	// StrategyUUID names assets with a random 128-bit UUID. Collisions are
	// astronomically unlikely, so no existence check is performed.
	StrategyUUID = "uuidv4"

	// StrategyRandomStr names assets with a short random alphanumeric
	// string. Each candidate is checked against the store for any file
	// starting with that id before being accepted.
	StrategyRandomStr = "randomstr"
)

const (
	alphabet     = "abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomLength = 5
	maxAttempts  = 64
)

// ErrAllocationExhausted is returned when the short-name strategy fails to
// find a free id within the attempt budget. With 62^5 possible names this
// only happens when the store is pathologically full.
var ErrAllocationExhausted = errors.New("naming: exhausted allocation attempts")

// PrefixChecker reports whether any stored file starts with the prefix.
type PrefixChecker interface {
	ExistsPrefix(prefix string) (bool, error)
}

// Allocator hands out storage ids that do not collide with existing files.
type Allocator struct {
	strategy string
	store    PrefixChecker
}

// New creates an Allocator. Unknown strategies fall back to StrategyRandomStr.
func New(strategy string, store PrefixChecker) *Allocator {
	if strategy != StrategyUUID {
		strategy = StrategyRandomStr
	}
	return &Allocator{strategy: strategy, store: store}
}

// Allocate returns a fresh id. Under the short-name strategy it retries on
// collision up to a fixed budget and then fails with ErrAllocationExhausted.
func (a *Allocator) Allocate() (string, error) {
	if a.strategy == StrategyUUID {
		return uuid.New().String(), nil
	}

	for range maxAttempts {
		id := randomString(randomLength)
		// The trailing dot keeps "abc12" from matching "abc123.png".
		exists, err := a.store.ExistsPrefix(id + ".")
		if err != nil {
			return "", fmt.Errorf("checking id collision: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", ErrAllocationExhausted
}

func randomString(n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}
