package classtoken

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/school"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = core.NewNotFoundError("class token not found")
	ErrTokenStillActive = core.NewConflictError("class token is still active")
	ErrInvalidToken     = core.NewValidationError(errors.New("invalid class token"))

	errExpirationNotFuture = errors.New("expiration date must be in the future")
)

type (
	Repository interface {
		CreateToken(ctx context.Context, tok ClassToken, exec ...core.DBExecutor) (ClassToken, error)
		// GetTokenByString resolves a token by exact string match, along with its class.
		GetTokenByString(ctx context.Context, token string, exec ...core.DBExecutor) (ClassToken, error)
		// GetLastClassToken returns the most recently created token for a class
		// (ordered by created_at descending), regardless of expiration.
		GetLastClassToken(ctx context.Context, classID string, exec ...core.DBExecutor) (ClassToken, error)
		// DeleteToken removes a token by exact string match; deleting an
		// absent token is not an error.
		DeleteToken(ctx context.Context, token string, exec ...core.DBExecutor) error
		// QueryActiveTokens returns non-expired tokens and the total count.
		QueryActiveTokens(ctx context.Context, filter QueryFilter, ordering core.DBOrdering, offset, limit int, exec ...core.DBExecutor) ([]ClassToken, int, error)
	}

	Service struct {
		db         core.DB
		repo       Repository
		schoolRepo school.Repository
		log        core.Logger
	}
)

func NewService(db core.DB, repo Repository, schoolRepo school.Repository, log core.Logger) *Service {
	return &Service{db: db, repo: repo, schoolRepo: schoolRepo, log: log}
}

// Generate mints a new enrollment token for a class.
// At most one non-expired token may exist per class at any time; the
// last-token read and the new-token insert run in one transaction with
// a row lock on the class so concurrent calls for the same class are
// serialized.
func (svc *Service) Generate(ctx context.Context, classID string, expirationDate time.Time) (ClassToken, error) {
	svc.log.Debug("generating class token", "class_id", classID)

	if !expirationDate.After(NowFunc()) {
		return ClassToken{}, core.NewValidationError(errExpirationNotFuture,
			core.FieldError{Field: "expiration_date", Error: errExpirationNotFuture.Error()})
	}

	var tok ClassToken
	err := core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		cls, err := svc.schoolRepo.GetClass(ctx, school.ClassFilter{ID: classID, Lock: true}, tx)
		if err != nil {
			return err
		}

		number := 1
		last, err := svc.repo.GetLastClassToken(ctx, classID, tx)
		switch {
		case err == nil:
			if !last.Expired(NowFunc()) {
				return ErrTokenStillActive
			}
			number = last.TokenNumber + 1
		case core.IsNotFound(err):
			// first token for this class
		default:
			return err
		}

		now := NowFunc().UTC()
		tok, err = svc.repo.CreateToken(ctx, ClassToken{
			Token:          MakeToken(cls, number),
			TokenNumber:    number,
			ExpirationDate: expirationDate.UTC(),
			CreatedAt:      now,
			Class:          cls,
		}, tx)
		return err
	})
	if err != nil {
		return ClassToken{}, err
	}

	svc.log.Info("class token generated", "class_id", classID, "token_number", tok.TokenNumber)
	return tok, nil
}

// Validate resolves the class an enrollment token grants access to.
// Expired tokens are indistinguishable from unknown ones.
func (svc *Service) Validate(ctx context.Context, token string) (school.Class, error) {
	tok, err := svc.repo.GetTokenByString(ctx, core.CleanString(token))
	if err != nil {
		if core.IsNotFound(err) {
			return school.Class{}, ErrInvalidToken
		}
		return school.Class{}, err
	}
	if tok.Expired(NowFunc()) {
		svc.log.Warn("class token has expired", "token", tok.Token)
		return school.Class{}, ErrInvalidToken
	}
	return tok.Class, nil
}

// Invalidate removes a token. Invalidating an absent or already-expired
// token is a no-op.
func (svc *Service) Invalidate(ctx context.Context, token string) error {
	return svc.repo.DeleteToken(ctx, core.CleanString(token))
}

// QueryActive lists non-expired tokens, optionally scoped to one class,
// with offset pagination and allow-listed ordering. Also returns the
// total number of matching tokens.
func (svc *Service) QueryActive(ctx context.Context, filter QueryFilter, pg core.Paginator) ([]ClassToken, int, error) {
	ordering, err := pg.Clean(OrderColumns)
	if err != nil {
		return nil, 0, err
	}
	return svc.repo.QueryActiveTokens(ctx, filter, ordering, pg.Offset(), pg.Limit)
}
