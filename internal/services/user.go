package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cinevault/apiserver/internal/auth"
	"github.com/cinevault/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id string, upd types.ProfileUpdate) (types.User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expiry time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// UserService encapsulates signup and profile use-cases.
type UserService struct {
	repo   UserRepository
	hasher *auth.PasswordHasher
	policy *auth.PasswordPolicy
}

func NewUserService(repo UserRepository, hasher *auth.PasswordHasher, policy *auth.PasswordPolicy) *UserService {
	if policy == nil {
		policy = auth.NewPasswordPolicy()
	}
	return &UserService{repo: repo, hasher: hasher, policy: policy}
}

type RegisterParams struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Age       int    `json:"age" validate:"required,gt=0,lte=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

// Register creates an account. It does not sign the user in.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)
	params.Email = strings.TrimSpace(params.Email)
	if err := validateStruct(params); err != nil {
		return types.User{}, err
	}
	if err := checkPassword(s.policy, params.Password); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.hasher.Hash(params.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        params.Email,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Age:          params.Age,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetProfile loads the caller's own record. A session whose user no longer
// exists is treated as invalid.
func (s *UserService) GetProfile(ctx context.Context, userID string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.User{}, ErrInvalidSession
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

type UpdateProfileParams struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Age       *int    `json:"age"`
	Email     *string `json:"email"`
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (types.User, error) {
	upd := types.ProfileUpdate{Age: params.Age}
	if params.FirstName == nil && params.LastName == nil && params.Age == nil && params.Email == nil {
		return types.User{}, invalid("", "no fields to update")
	}

	var err error
	if upd.FirstName, err = trimmedField("firstName", params.FirstName); err != nil {
		return types.User{}, err
	}
	if upd.LastName, err = trimmedField("lastName", params.LastName); err != nil {
		return types.User{}, err
	}
	if upd.Email, err = trimmedField("email", params.Email); err != nil {
		return types.User{}, err
	}
	if upd.Email != nil {
		if err := validatorInstance().Var(*upd.Email, "email"); err != nil {
			return types.User{}, invalid("email", "must be a valid email address")
		}
	}
	if upd.Age != nil && (*upd.Age < 1 || *upd.Age > 150) {
		return types.User{}, invalid("age", "must be between 1 and 150")
	}

	user, err := s.repo.Update(ctx, userID, upd)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return types.User{}, ErrInvalidSession
		case errors.Is(err, ErrConflict):
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// DeleteProfile removes the caller's account after re-checking the password.
func (s *UserService) DeleteProfile(ctx context.Context, userID, password string) error {
	if password == "" {
		return invalid("password", "is required")
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidSession
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func trimmedField(name string, value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, invalid(name, "must not be empty")
	}
	return &trimmed, nil
}

func checkPassword(policy *auth.PasswordPolicy, password string) error {
	if err := policy.Validate(password); err != nil {
		var perr *auth.PasswordPolicyError
		if errors.As(err, &perr) {
			return invalid("password", perr.Message)
		}
		return invalid("password", err.Error())
	}
	return nil
}
