package store

import (
	"context"
	"fmt"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/docstore"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/travel"
)

// AddressValidator confirms a free-text address with the geocoding
// provider.
type AddressValidator interface {
	Validate(ctx context.Context, address string) (travel.Address, string, bool)
}

// UserStore is the cache-backed store of chat subscribers, keyed by chat_id.
// Deleting a user deletes the user's finders first.
type UserStore struct {
	*Store[int64, model.User]
	finders *FinderStore
}

// NewUserStore wraps coll. finders receives cascading deletes.
func NewUserStore(coll docstore.Collection[int64, model.User], finders *FinderStore, opts ...Option) *UserStore {
	return &UserStore{
		Store: newStore("users", coll, model.ValidateUser,
			func(u *model.User) bool { return u.IsActive }, buildOptions(opts)),
		finders: finders,
	}
}

// SaveUser stores u under its chat_id.
func (s *UserStore) SaveUser(ctx context.Context, u *model.User) error {
	if u == nil {
		return model.ValidateUser(nil)
	}
	return s.Save(ctx, u.ChatID, u)
}

// Delete removes the user's finders, then the user.
func (s *UserStore) Delete(ctx context.Context, chatID int64) error {
	n, err := s.finders.DeleteByUser(ctx, chatID)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", chatID, err)
	}
	if err := s.Store.Delete(ctx, chatID); err != nil {
		return err
	}
	s.logger.Info("user deleted", "chat_id", chatID, "finders", n)
	return nil
}

// ActiveUsers reads every active user straight from the collection.
func (s *UserStore) ActiveUsers(ctx context.Context) ([]*model.User, error) {
	return s.find(ctx, docstore.Where(docstore.Eq("is_active", true)))
}

// SetAddress confirms address with v and stores the provider's formatted
// address and place id. An unconfirmed address is refused with a
// *model.ValidationError carrying the provider's reason.
func (s *UserStore) SetAddress(ctx context.Context, chatID int64, address string, v AddressValidator) (*model.User, error) {
	u, err := s.GetAny(ctx, chatID)
	if err != nil {
		return nil, err
	}
	addr, reason, ok := v.Validate(ctx, address)
	if !ok {
		return nil, &model.ValidationError{Msg: fmt.Sprintf("address %q not accepted: %s", address, reason)}
	}
	u.Preferences.Address = addr.Formatted
	u.Preferences.AddressID = addr.PlaceID
	if err := s.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
