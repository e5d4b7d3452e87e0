package dummydb

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/classtoken"
)

type ClassTokenRepository struct {
	mu     sync.RWMutex
	tokens []classtoken.ClassToken
}

var _ classtoken.Repository = (*ClassTokenRepository)(nil) // interface compliance check

func NewClassTokenRepository() *ClassTokenRepository {
	return &ClassTokenRepository{}
}

func (repo *ClassTokenRepository) CreateToken(_ context.Context, tok classtoken.ClassToken, _ ...core.DBExecutor) (classtoken.ClassToken, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	// unique constraints backstop, as postgres would enforce
	for _, existing := range repo.tokens {
		if existing.Token == tok.Token ||
			(existing.Class.ID == tok.Class.ID && existing.TokenNumber == tok.TokenNumber) {
			return classtoken.ClassToken{}, core.NewConflictError("inserting class token: record already exists")
		}
	}

	tok.ID = uuid.New().String()
	repo.tokens = append(repo.tokens, tok)
	return tok, nil
}

func (repo *ClassTokenRepository) GetTokenByString(_ context.Context, token string, _ ...core.DBExecutor) (classtoken.ClassToken, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, tok := range repo.tokens {
		if tok.Token == token {
			return tok, nil
		}
	}
	return classtoken.ClassToken{}, classtoken.ErrNotFound
}

func (repo *ClassTokenRepository) GetLastClassToken(_ context.Context, classID string, _ ...core.DBExecutor) (classtoken.ClassToken, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	// insertion order stands in for created_at ordering
	for i := len(repo.tokens) - 1; i >= 0; i-- {
		if repo.tokens[i].Class.ID == classID {
			return repo.tokens[i], nil
		}
	}
	return classtoken.ClassToken{}, classtoken.ErrNotFound
}

func (repo *ClassTokenRepository) DeleteToken(_ context.Context, token string, _ ...core.DBExecutor) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	for i, tok := range repo.tokens {
		if tok.Token == token {
			repo.tokens = append(repo.tokens[:i], repo.tokens[i+1:]...)
			return nil
		}
	}
	return nil // deleting an absent token is a no-op
}

func (repo *ClassTokenRepository) QueryActiveTokens(
	_ context.Context,
	filter classtoken.QueryFilter,
	ordering core.DBOrdering,
	offset, limit int,
	_ ...core.DBExecutor,
) ([]classtoken.ClassToken, int, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	now := classtoken.NowFunc()
	var toks []classtoken.ClassToken
	for _, tok := range repo.tokens {
		if tok.Expired(now) {
			continue
		}
		if !filter.IsEmpty() && tok.Class.ID != filter.ClassID {
			continue
		}
		toks = append(toks, tok)
	}
	total := len(toks)

	less := func(a, b classtoken.ClassToken) bool {
		switch ordering.Field {
		case "token":
			return a.Token < b.Token
		case "token_number":
			return a.TokenNumber < b.TokenNumber
		case "expiration_date":
			return a.ExpirationDate.Before(b.ExpirationDate)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(toks, func(i, j int) bool {
		if ordering.Ascending {
			return less(toks[i], toks[j])
		}
		return less(toks[j], toks[i])
	})

	lo, hi := paging(total, offset, limit)
	return toks[lo:hi], total, nil
}
