// Package catalog implements the product catalog: public listing and
// detail, and the admin create, update and delete paths.
package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/logger"
	"perfume-store/internal/media"
	"perfume-store/internal/models"
	"perfume-store/internal/store"
)

const imageDir = "products"

// Blobs stores product media and returns stable references.
type Blobs interface {
	Save(ctx context.Context, dir string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

type Service struct {
	products store.Products
	blobs    Blobs
	log      *logger.Logger
	now      func() time.Time
}

func NewService(products store.Products, blobs Blobs, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		products: products,
		blobs:    blobs,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ListQuery struct {
	Category string
	Search   string
	Featured bool
}

// List returns products newest first. An empty or "all" category does not
// filter; an unknown category matches nothing.
func (s *Service) List(ctx context.Context, q ListQuery) ([]models.Product, error) {
	query := store.ProductQuery{
		Search:   strings.TrimSpace(q.Search),
		Featured: q.Featured,
	}
	if category := strings.ToLower(strings.TrimSpace(q.Category)); category != "" && category != "all" {
		query.Category = models.Category(category)
		if !query.Category.Valid() {
			return []models.Product{}, nil
		}
	}

	products, err := s.products.List(ctx, query)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load products")
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	product, err := s.products.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load product")
	}
	return product, nil
}

func notFound(id primitive.ObjectID) error {
	return apperrors.New(apperrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"productId": id.Hex()})
}

// Input carries admin product fields. Nil fields were not supplied.
type Input struct {
	Name          *string
	NameAr        *string
	Price         *float64
	Currency      *string
	Description   *string
	DescriptionAr *string
	Category      *string
	Stock         *int
	Featured      *bool
	Image         io.Reader
	BoxImage      io.Reader
}

func (in Input) validate(create bool) (map[string]string, *models.Category) {
	fields := map[string]string{}
	required := func(name string, value *string) {
		if value == nil || strings.TrimSpace(*value) == "" {
			if create || value != nil {
				fields[name] = "required"
			}
		}
	}
	required("name", in.Name)
	required("nameAr", in.NameAr)

	if in.Price == nil && create {
		fields["price"] = "required"
	}
	if in.Price != nil && *in.Price < 0 {
		fields["price"] = "must not be negative"
	}
	if in.Stock != nil && *in.Stock < 0 {
		fields["stock"] = "must not be negative"
	}

	var category *models.Category
	switch {
	case in.Category != nil:
		c := models.Category(strings.ToLower(strings.TrimSpace(*in.Category)))
		if !c.Valid() {
			fields["category"] = "must be one of spray, perfume, candle, gift"
		}
		category = &c
	case create:
		fields["category"] = "required"
	}

	if create && in.Image == nil {
		fields["image"] = "required"
	}
	if create && in.BoxImage == nil {
		fields["boxImage"] = "required"
	}
	return fields, category
}

func validationError(fields map[string]string) error {
	return apperrors.New(apperrors.CodeValidation, "invalid product").WithDetails(fields)
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

// Create validates the input, stores both images and inserts the product.
// Stored images are removed again if the insert fails.
func (s *Service) Create(ctx context.Context, in Input) (*models.Product, error) {
	fields, category := in.validate(true)
	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	saved, err := s.saveImages(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	product := &models.Product{
		Name:          trimmed(in.Name),
		NameAr:        trimmed(in.NameAr),
		Price:         *in.Price,
		Currency:      trimmed(in.Currency),
		Description:   trimmed(in.Description),
		DescriptionAr: trimmed(in.DescriptionAr),
		Category:      *category,
		Image:         saved.image,
		BoxImage:      saved.boxImage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if product.Currency == "" {
		product.Currency = models.DefaultCurrency
	}
	if in.Stock != nil {
		product.Stock = *in.Stock
	}
	if in.Featured != nil {
		product.Featured = *in.Featured
	}

	if err := s.products.Insert(ctx, product); err != nil {
		s.discard(ctx, saved.image, saved.boxImage)
		return nil, apperrors.FromStore(err, "failed to save product")
	}

	s.log.Event(ctx).Str("product_id", product.ID.Hex()).Str("name", product.Name).Msg("product created")
	return product, nil
}

// Update applies the supplied fields. A replaced image deletes the old blob
// once the new reference is stored.
func (s *Service) Update(ctx context.Context, id primitive.ObjectID, in Input) (*models.Product, error) {
	fields, category := in.validate(false)
	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	saved, err := s.saveImages(ctx, in)
	if err != nil {
		return nil, err
	}

	patch := store.ProductPatch{
		Price:    in.Price,
		Stock:    in.Stock,
		Featured: in.Featured,
		Category: category,
	}
	for _, f := range []struct {
		src *string
		dst **string
	}{
		{in.Name, &patch.Name},
		{in.NameAr, &patch.NameAr},
		{in.Currency, &patch.Currency},
		{in.Description, &patch.Description},
		{in.DescriptionAr, &patch.DescriptionAr},
	} {
		if f.src != nil {
			value := strings.TrimSpace(*f.src)
			*f.dst = &value
		}
	}
	if saved.image != "" {
		patch.Image = &saved.image
	}
	if saved.boxImage != "" {
		patch.BoxImage = &saved.boxImage
	}

	updated, err := s.products.Update(ctx, id, patch, s.now())
	if err != nil {
		s.discard(ctx, saved.image, saved.boxImage)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, apperrors.FromStore(err, "failed to update product")
	}

	if saved.image != "" {
		s.discard(ctx, current.Image)
	}
	if saved.boxImage != "" {
		s.discard(ctx, current.BoxImage)
	}

	s.log.Event(ctx).Str("product_id", id.Hex()).Msg("product updated")
	return updated, nil
}

// Delete removes the product and then its images. Orders keep their own
// snapshot of the product.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	deleted, err := s.products.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(id)
	}
	if err != nil {
		return apperrors.FromStore(err, "failed to delete product")
	}

	s.discard(ctx, deleted.Image, deleted.BoxImage)
	s.log.Event(ctx).Str("product_id", id.Hex()).Msg("product deleted")
	return nil
}

type savedImages struct {
	image    string
	boxImage string
}

func (s *Service) saveImages(ctx context.Context, in Input) (savedImages, error) {
	var saved savedImages
	if in.Image != nil {
		ref, err := s.save(ctx, "image", in.Image)
		if err != nil {
			return saved, err
		}
		saved.image = ref
	}
	if in.BoxImage != nil {
		ref, err := s.save(ctx, "boxImage", in.BoxImage)
		if err != nil {
			s.discard(ctx, saved.image)
			return savedImages{}, err
		}
		saved.boxImage = ref
	}
	return saved, nil
}

func (s *Service) save(ctx context.Context, field string, r io.Reader) (string, error) {
	ref, err := s.blobs.Save(ctx, imageDir, r)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, media.ErrTooLarge), errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmpty):
		return "", validationError(map[string]string{field: err.Error()})
	default:
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "failed to store image")
	}
}

// discard deletes blobs best-effort; failures only leave orphaned files.
func (s *Service) discard(ctx context.Context, refs ...string) {
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
			s.log.ErrorEvent(ctx, err).Str("ref", ref).Msg("image delete failed")
		}
	}
}
