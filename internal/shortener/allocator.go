package shortener

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jaevor/go-nanoid"
)

// codeAlphabet is the URL-safe alphabet short codes are drawn from.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

const maxGenerateAttempts = 10

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var (
	// ErrAliasInvalid is returned for aliases outside the allowed charset or length.
	ErrAliasInvalid = errors.New("alias contains invalid characters or length")

	// ErrAliasTaken is returned when the requested alias is already in use.
	ErrAliasTaken = errors.New("alias already in use")

	// ErrCodeSpaceExhausted is returned when even the widened code collides.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique code")
)

// ValidCode reports whether s matches the short-code charset.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}

// Allocator produces unique short codes, either randomly generated or from a
// user-requested alias. Collision probes go against the authoritative
// repository, never the cache.
type Allocator struct {
	repo     Repository
	generate func() string
	widened  func() string
	minAlias int
	maxAlias int
}

// NewAllocator builds an allocator generating codes of the given length. The
// widened generator (length+2) is the fallback after repeated collisions.
func NewAllocator(repo Repository, length, minAlias, maxAlias int) (*Allocator, error) {
	generate, err := nanoid.CustomASCII(codeAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("code generator: %w", err)
	}

	widened, err := nanoid.CustomASCII(codeAlphabet, length+2)
	if err != nil {
		return nil, fmt.Errorf("widened code generator: %w", err)
	}

	return &Allocator{
		repo:     repo,
		generate: generate,
		widened:  widened,
		minAlias: minAlias,
		maxAlias: maxAlias,
	}, nil
}

// Allocate returns a fresh unique code. It tries up to maxGenerateAttempts
// random codes of the configured length, then a single longer one.
func (a *Allocator) Allocate(ctx context.Context) (Code, error) {
	for range maxGenerateAttempts {
		code := Code(a.generate())

		taken, err := a.taken(ctx, code)
		if err != nil {
			return "", err
		}

		if !taken {
			return code, nil
		}
	}

	code := Code(a.widened())

	taken, err := a.taken(ctx, code)
	if err != nil {
		return "", err
	}

	if taken {
		return "", ErrCodeSpaceExhausted
	}

	return code, nil
}

// ValidateAlias checks a requested custom alias against charset and length
// rules and rejects aliases already in use.
func (a *Allocator) ValidateAlias(ctx context.Context, alias string) error {
	if len(alias) < a.minAlias || len(alias) > a.maxAlias || !ValidCode(alias) {
		return ErrAliasInvalid
	}

	taken, err := a.taken(ctx, Code(alias))
	if err != nil {
		return err
	}

	if taken {
		return ErrAliasTaken
	}

	return nil
}

func (a *Allocator) taken(ctx context.Context, code Code) (bool, error) {
	_, err := a.repo.FindByCode(ctx, code)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return false, err
}
