package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/media"
	"perfume-store/internal/models"
	"perfume-store/internal/store/memory"
)

type fakeBlobs struct {
	mu      sync.Mutex
	next    int
	stored  map[string]string
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{stored: map[string]string{}}
}

func (b *fakeBlobs) Save(_ context.Context, dir string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if string(data) == "not-an-image" {
		return "", media.ErrUnsupportedType
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	ref := fmt.Sprintf("/uploads/%s/%d.png", dir, b.next)
	b.stored[ref] = string(data)
	return ref, nil
}

func (b *fakeBlobs) Delete(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stored, ref)
	b.deleted = append(b.deleted, ref)
	return nil
}

func str(v string) *string { return &v }
func num(v float64) *float64 { return &v }
func qty(v int) *int { return &v }
func flag(v bool) *bool { return &v }
func img(v string) io.Reader { return strings.NewReader(v) }

func validInput() Input {
	return Input{
		Name:          str("Royal Oud"),
		NameAr:        str("عود ملكي"),
		Price:         num(250),
		Description:   str("Deep smoky oud"),
		DescriptionAr: str("عود مدخن"),
		Category:      str("perfume"),
		Image:         img("front"),
		BoxImage:      img("box"),
	}
}

func newService() (*Service, *memory.Store, *fakeBlobs) {
	st := memory.New()
	blobs := newFakeBlobs()
	return NewService(st.Products(), blobs, nil), st, blobs
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _, blobs := newService()

	product, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.False(t, product.ID.IsZero())
	assert.Equal(t, models.DefaultCurrency, product.Currency)
	assert.Equal(t, 0, product.Stock)
	assert.False(t, product.Featured)
	assert.Equal(t, models.CategoryPerfume, product.Category)
	assert.Equal(t, "front", blobs.stored[product.Image])
	assert.Equal(t, "box", blobs.stored[product.BoxImage])
}

func TestCreateValidation(t *testing.T) {
	cases := map[string]func(*Input){
		"missing name":     func(in *Input) { in.Name = nil },
		"blank arabic":     func(in *Input) { in.NameAr = str("  ") },
		"missing price":    func(in *Input) { in.Price = nil },
		"negative price":   func(in *Input) { in.Price = num(-1) },
		"negative stock":   func(in *Input) { in.Stock = qty(-3) },
		"unknown category": func(in *Input) { in.Category = str("soap") },
		"missing image":    func(in *Input) { in.Image = nil },
		"missing box":      func(in *Input) { in.BoxImage = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, blobs := newService()
			in := validInput()
			mutate(&in)

			_, err := svc.Create(context.Background(), in)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "got %v", err)
			assert.Empty(t, blobs.stored)
		})
	}
}

func TestCreateRejectsBadImageAndCleansUp(t *testing.T) {
	svc, _, blobs := newService()
	in := validInput()
	in.BoxImage = img("not-an-image")

	_, err := svc.Create(context.Background(), in)
	require.True(t, apperrors.Is(err, apperrors.CodeValidation))
	assert.Empty(t, blobs.stored)
	assert.Len(t, blobs.deleted, 1)
}

func TestUpdateTouchesOnlySuppliedFields(t *testing.T) {
	svc, _, blobs := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	oldImage := created.Image

	updated, err := svc.Update(ctx, created.ID, Input{Stock: qty(12), Featured: flag(true), Image: img("new-front")})
	require.NoError(t, err)

	assert.Equal(t, 12, updated.Stock)
	assert.True(t, updated.Featured)
	assert.Equal(t, "Royal Oud", updated.Name)
	assert.Equal(t, float64(250), updated.Price)
	assert.Equal(t, created.BoxImage, updated.BoxImage)
	assert.NotEqual(t, oldImage, updated.Image)
	assert.Equal(t, []string{oldImage}, blobs.deleted)
}

func TestUpdateValidationAndMissing(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, Input{Stock: qty(-1)})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = svc.Update(ctx, created.ID, Input{Name: str("")})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, err = svc.Update(ctx, primitive.NewObjectID(), Input{Stock: qty(1)})
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestDeleteRemovesImages(t *testing.T) {
	svc, _, blobs := newService()
	ctx := context.Background()
	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.ElementsMatch(t, []string{created.Image, created.BoxImage}, blobs.deleted)

	_, err = svc.Get(ctx, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	err = svc.Delete(ctx, created.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestListFilters(t *testing.T) {
	svc, st, _ := newService()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []models.Product{
		{Name: "Ocean Mist", NameAr: "رذاذ المحيط", Category: models.CategorySpray, CreatedAt: base},
		{Name: "Rose Oud", NameAr: "ورد وعود", Description: "rose and OUD", Category: models.CategoryPerfume, Featured: true, CreatedAt: base.Add(time.Hour)},
		{Name: "Vanilla Glow", NameAr: "شمعة", DescriptionAr: "فانيليا", Category: models.CategoryCandle, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, st.Products().Insert(ctx, &seed[i]))
	}

	all, err := svc.List(ctx, ListQuery{Category: "all"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Vanilla Glow", all[0].Name)

	sprays, err := svc.List(ctx, ListQuery{Category: "spray"})
	require.NoError(t, err)
	require.Len(t, sprays, 1)
	assert.Equal(t, models.CategorySpray, sprays[0].Category)

	oud, err := svc.List(ctx, ListQuery{Search: "oud"})
	require.NoError(t, err)
	require.Len(t, oud, 1)
	assert.Equal(t, "Rose Oud", oud[0].Name)

	arabic, err := svc.List(ctx, ListQuery{Search: "فانيليا"})
	require.NoError(t, err)
	require.Len(t, arabic, 1)

	featured, err := svc.List(ctx, ListQuery{Featured: true})
	require.NoError(t, err)
	require.Len(t, featured, 1)

	none, err := svc.List(ctx, ListQuery{Category: "soap"})
	require.NoError(t, err)
	assert.Empty(t, none)

	regex, err := svc.List(ctx, ListQuery{Search: ".*"})
	require.NoError(t, err)
	assert.Empty(t, regex)
}

type brokenBlobs struct{ fakeBlobs }

func (b *brokenBlobs) Save(context.Context, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func TestCreateBlobFailureIsInternal(t *testing.T) {
	st := memory.New()
	svc := NewService(st.Products(), &brokenBlobs{}, nil)

	_, err := svc.Create(context.Background(), validInput())
	assert.True(t, apperrors.Is(err, apperrors.CodeInternal))
}
