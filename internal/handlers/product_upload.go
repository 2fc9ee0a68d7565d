package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/catalog"
)

const maxMultipartMemory = 32 << 20

// productForm is a parsed admin product form. Close releases the opened
// image parts once the catalog has consumed them.
type productForm struct {
	Input   catalog.Input
	closers []io.Closer
}

func (f *productForm) Close() {
	for _, closer := range f.closers {
		_ = closer.Close()
	}
	f.closers = nil
}

// parseMultipartProductRequest reads the product form. Fields that are
// absent stay nil so updates only touch what was sent; the last value of a
// repeated field wins.
func parseMultipartProductRequest(c *gin.Context) (*productForm, error) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid form body")
	}

	form := &productForm{}
	fields := map[string]string{}
	in := &form.Input

	in.Name = formString(c, "name")
	in.NameAr = formString(c, "nameAr")
	in.Currency = formString(c, "currency")
	in.Description = formString(c, "description")
	in.DescriptionAr = formString(c, "descriptionAr")
	in.Category = formString(c, "category")

	if raw := formString(c, "price"); raw != nil {
		price, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			fields["price"] = "must be a number"
		} else {
			in.Price = &price
		}
	}
	if raw := formString(c, "stock"); raw != nil {
		stock, err := strconv.Atoi(*raw)
		if err != nil {
			fields["stock"] = "must be an integer"
		} else {
			in.Stock = &stock
		}
	}
	if raw := formString(c, "featured"); raw != nil {
		featured, err := parseBoolValue(*raw)
		if err != nil {
			fields["featured"] = "must be true or false"
		} else {
			in.Featured = &featured
		}
	}

	var err error
	if in.Image, err = form.openFile(c, "image"); err != nil {
		fields["image"] = err.Error()
	}
	if in.BoxImage, err = form.openFile(c, "boxImage"); err != nil {
		fields["boxImage"] = err.Error()
	}

	if len(fields) > 0 {
		form.Close()
		return nil, apperrors.New(apperrors.CodeValidation, "invalid product").WithDetails(fields)
	}
	return form, nil
}

func formString(c *gin.Context, name string) *string {
	values, ok := c.GetPostFormArray(name)
	if !ok || len(values) == 0 {
		return nil
	}
	value := strings.TrimSpace(values[len(values)-1])
	return &value
}

// openFile returns nil without error when the part is absent.
func (f *productForm) openFile(c *gin.Context, name string) (io.Reader, error) {
	header, err := c.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New("could not read upload")
	}
	file, err := header.Open()
	if err != nil {
		return nil, errors.New("could not read upload")
	}
	f.closers = append(f.closers, file)
	return file, nil
}
