package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
)

// Product form messages.
const (
	MsgTitle        = "Title must be at least 3 characters long"
	MsgPrice        = "Price must be a number greater than 0"
	MsgDescription  = "Description must be 5 - 400"
	MsgImageMissing = "Upload an image"
	MsgImageType    = "Invalid image type (PNG/JPG/JPEG only)"
)

const imageKeyPrefix = "products/"

// ProductInput is the submitted product form.
type ProductInput struct {
	Title       string
	Price       string
	Description string
}

// ProductService creates, updates and deletes products together with their
// image files. File work that can abort a change runs before the database
// write; files orphaned by the write are removed after it.
type ProductService struct {
	products domain.ProductRepository
	files    domain.FileStore
	guard    *Guard
}

// NewProductService creates a new ProductService.
func NewProductService(products domain.ProductRepository, files domain.FileStore, guard *Guard) *ProductService {
	return &ProductService{products: products, files: files, guard: guard}
}

// ParsePrice converts a decimal string with at most two fraction digits to
// cents. Zero, negative and malformed values are rejected.
func ParsePrice(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && !hasFrac {
		return 0, errors.New("empty price")
	}
	if len(frac) > 2 || (hasFrac && frac == "") {
		return 0, errors.New("too many decimal places")
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, errors.New("not a number")
			}
		}
	}

	var units int64
	if whole != "" {
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > math.MaxInt64/100-1 {
			return 0, errors.New("price out of range")
		}
		units = n
	}
	var cents int64
	if frac != "" {
		if len(frac) == 1 {
			frac += "0"
		}
		n, _ := strconv.ParseInt(frac, 10, 64)
		cents = n
	}

	total := units*100 + cents
	if total <= 0 {
		return 0, errors.New("price must be positive")
	}
	return total, nil
}

func validateProduct(in ProductInput) (title, description string, cents int64, verr *domain.ValidationError) {
	verr = &domain.ValidationError{}
	title = strings.TrimSpace(in.Title)
	description = strings.TrimSpace(in.Description)

	if utf8.RuneCountInString(title) < 3 {
		verr.Add("title", MsgTitle)
	}
	cents, err := ParsePrice(in.Price)
	if err != nil {
		verr.Add("price", MsgPrice)
	}
	if n := utf8.RuneCountInString(description); n < 5 || n > 400 {
		verr.Add("description", MsgDescription)
	}
	return title, description, cents, verr
}

// imageExtension sniffs the upload. The part header is only consulted when
// the bytes are inconclusive.
func imageExtension(up *domain.Upload) (contentType, ext string, ok bool) {
	detected := http.DetectContentType(up.Data)
	if ext, ok := domain.ImageContentTypes[detected]; ok {
		return detected, ext, true
	}
	if detected == "application/octet-stream" {
		declared := strings.ToLower(strings.TrimSpace(up.ContentType))
		if ext, ok := domain.ImageContentTypes[declared]; ok {
			return declared, ext, true
		}
	}
	return "", "", false
}

func (s *ProductService) storeImage(ctx context.Context, up *domain.Upload) (string, error) {
	contentType, ext, _ := imageExtension(up)
	key := imageKeyPrefix + uuid.NewString() + "." + ext
	if err := s.files.Save(ctx, key, contentType, up.Data); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

// discardImage removes a file that no record references. Absent files are
// fine; anything else is logged.
func (s *ProductService) discardImage(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to remove unreferenced image", "key", key, "error", err)
	}
}

// Create validates the form, stores the image and inserts the product.
func (s *ProductService) Create(ctx context.Context, ownerID uuid.UUID, in ProductInput, up *domain.Upload) (*domain.Product, error) {
	if ownerID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	title, description, cents, verr := validateProduct(in)
	if up == nil || len(up.Data) == 0 {
		verr.Add("image", MsgImageMissing)
	} else if _, _, ok := imageExtension(up); !ok {
		verr.Add("image", MsgImageType)
	}
	if !verr.Empty() {
		return nil, verr
	}

	key, err := s.storeImage(ctx, up)
	if err != nil {
		return nil, err
	}

	p := &domain.Product{
		OwnerID:     ownerID,
		Title:       title,
		PriceCents:  cents,
		Description: description,
		ImageKey:    key,
	}
	if err := s.products.Create(ctx, p); err != nil {
		s.discardImage(ctx, key)
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Update applies the form to a product the requester owns. With an upload
// the new image is stored first, the record switched to it, and only then
// the old image removed.
func (s *ProductService) Update(ctx context.Context, requesterID, productID uuid.UUID, in ProductInput, up *domain.Upload) (*domain.Product, error) {
	p, err := s.guard.Load(ctx, requesterID, productID)
	if err != nil {
		return nil, err
	}

	title, description, cents, verr := validateProduct(in)
	hasUpload := up != nil && len(up.Data) > 0
	if hasUpload {
		if _, _, ok := imageExtension(up); !ok {
			verr.Add("image", MsgImageType)
		}
	}
	if !verr.Empty() {
		return nil, verr
	}

	oldKey := p.ImageKey
	if hasUpload {
		key, err := s.storeImage(ctx, up)
		if err != nil {
			return nil, err
		}
		p.ImageKey = key
	}
	p.Title = title
	p.PriceCents = cents
	p.Description = description

	if err := s.products.Update(ctx, p); err != nil {
		if hasUpload {
			s.discardImage(ctx, p.ImageKey)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	if hasUpload {
		s.discardImage(ctx, oldKey)
	}
	return p, nil
}

// Delete removes the image, then the record. If the image cannot be removed
// for any reason other than already being gone, the record is kept.
func (s *ProductService) Delete(ctx context.Context, requesterID, productID uuid.UUID) error {
	p, err := s.guard.Load(ctx, requesterID, productID)
	if err != nil {
		return err
	}

	if err := s.files.Delete(ctx, p.ImageKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete image: %w", err)
	}
	if err := s.products.Delete(ctx, p.ID, requesterID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// GetForEdit returns a product the requester owns.
func (s *ProductService) GetForEdit(ctx context.Context, requesterID, productID uuid.UUID) (*domain.Product, error) {
	return s.guard.Load(ctx, requesterID, productID)
}

// ListByOwner returns the owner's products, newest first.
func (s *ProductService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Product, error) {
	products, err := s.products.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Image returns stored image bytes for public serving. Only keys under the
// product image prefix are served.
func (s *ProductService) Image(ctx context.Context, key string) ([]byte, string, error) {
	if !strings.HasPrefix(key, imageKeyPrefix) || strings.Contains(key, "..") {
		return nil, "", domain.ErrNotFound
	}
	data, contentType, err := s.files.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("get image: %w", err)
	}
	if _, ok := domain.ImageContentTypes[contentType]; !ok {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
