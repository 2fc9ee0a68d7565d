package accounts

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/models"
)

type AddressInput struct {
	Title      string `validate:"required,max=60"`
	FullName   string `validate:"max=100"`
	Address    string `validate:"required,max=300"`
	City       string `validate:"required,max=100"`
	PostalCode string `validate:"max=20"`
	Country    string `validate:"max=60"`
	Phone      string `validate:"max=30"`
	IsDefault  bool
}

func (in AddressInput) normalized() AddressInput {
	in.Title = strings.TrimSpace(in.Title)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Country = strings.TrimSpace(in.Country)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

func (in AddressInput) apply(addr *models.Address) {
	addr.Title = in.Title
	addr.FullName = in.FullName
	addr.Address = in.Address
	addr.City = in.City
	addr.PostalCode = in.PostalCode
	addr.Country = in.Country
	addr.Phone = in.Phone
	addr.IsDefault = in.IsDefault
}

func (s *Service) ListAddresses(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Addresses == nil {
		return []models.Address{}, nil
	}
	return user.Addresses, nil
}

// AddAddress appends an address. The first address becomes the default.
func (s *Service) AddAddress(ctx context.Context, userID primitive.ObjectID, in AddressInput) (*models.Address, error) {
	in = in.normalized()
	if err := validate.Struct(in); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	address := models.Address{ID: uuid.NewString()}
	in.apply(&address)
	if len(user.Addresses) == 0 {
		address.IsDefault = true
	}
	if address.IsDefault {
		clearDefault(user.Addresses)
	}
	user.Addresses = append(user.Addresses, address)

	if err := s.saveAddresses(ctx, user); err != nil {
		return nil, err
	}
	return &address, nil
}

func (s *Service) UpdateAddress(ctx context.Context, userID primitive.ObjectID, addressID string, in AddressInput) (*models.Address, error) {
	in = in.normalized()
	if err := validate.Struct(in); err != nil {
		return nil, apperrors.FromValidation(err)
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	index := indexOf(user.Addresses, addressID)
	if index == -1 {
		return nil, addressNotFound(addressID)
	}
	wasDefault := user.Addresses[index].IsDefault
	if in.IsDefault {
		clearDefault(user.Addresses)
	}
	in.apply(&user.Addresses[index])
	if wasDefault && !in.IsDefault {
		// keep one default while addresses exist
		user.Addresses[index].IsDefault = true
	}

	if err := s.saveAddresses(ctx, user); err != nil {
		return nil, err
	}
	address := user.Addresses[index]
	return &address, nil
}

// DeleteAddress removes an address; if it was the default, the first
// remaining address takes over.
func (s *Service) DeleteAddress(ctx context.Context, userID primitive.ObjectID, addressID string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}

	index := indexOf(user.Addresses, addressID)
	if index == -1 {
		return addressNotFound(addressID)
	}
	removed := user.Addresses[index]
	user.Addresses = append(user.Addresses[:index], user.Addresses[index+1:]...)
	if removed.IsDefault && len(user.Addresses) > 0 {
		user.Addresses[0].IsDefault = true
	}

	return s.saveAddresses(ctx, user)
}

func (s *Service) saveAddresses(ctx context.Context, user *models.User) error {
	user.UpdatedAt = s.now()
	if err := s.users.Replace(ctx, user); err != nil {
		return apperrors.FromStore(err, "failed to save addresses")
	}
	return nil
}

func indexOf(addresses []models.Address, id string) int {
	id = strings.TrimSpace(id)
	for i, addr := range addresses {
		if addr.ID == id {
			return i
		}
	}
	return -1
}

func clearDefault(addresses []models.Address) {
	for i := range addresses {
		addresses[i].IsDefault = false
	}
}

func addressNotFound(id string) error {
	return apperrors.New(apperrors.CodeNotFound, "address not found").
		WithDetails(map[string]any{"addressId": id})
}
