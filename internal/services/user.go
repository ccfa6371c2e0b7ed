package services

import (
	"context"
	"errors"
	"strings"

	"github.com/mouldconnect/apiserver/internal/store"
	"github.com/mouldconnect/apiserver/types"
)

const (
	msgViewOwnUser   = "Forbidden: You can only view your own user data."
	msgUpdateOwnUser = "Forbidden: You can only update your own user data."
)

// UserService exposes the account details of the authenticated user.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// UpdateUserInput lists the editable fields. Nil leaves a field unchanged.
type UpdateUserInput struct {
	FullName *string
	Mobile   *string
}

// GetDetails returns the user identified by targetID, which must be the
// acting user.
func (s *UserService) GetDetails(ctx context.Context, targetID, actorID int) (types.User, error) {
	if targetID != actorID {
		return types.User{}, forbidden(msgViewOwnUser)
	}
	user, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, lookupError(err)
	}
	return user, nil
}

// Update changes the display name and mobile number of the acting user. The
// password hash is never written here.
func (s *UserService) Update(ctx context.Context, targetID, actorID int, in UpdateUserInput) (types.User, error) {
	if targetID != actorID {
		return types.User{}, forbidden(msgUpdateOwnUser)
	}
	in.FullName = trimmed(in.FullName)
	in.Mobile = trimmed(in.Mobile)

	user, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, lookupError(err)
	}

	if err := firstViolation(validateUserUpdate(in)); err != nil {
		return types.User{}, err
	}

	name, mobile := user.Name, user.Mobile
	if in.FullName != nil {
		name = *in.FullName
	}
	if in.Mobile != nil {
		mobile = *in.Mobile
	}

	updated, err := s.repo.UpdateDetails(ctx, user.ID, name, mobile)
	if err != nil {
		return types.User{}, updateError(err)
	}
	return updated, nil
}

func updateError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(msgUserNotFound)
	}
	return storeError(err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
