package store

import (
	"context"
	"errors"
	"strings"

	"garmentpos/backend/internal/domain"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidSale = errors.New("invalid sale")
	ErrUnavailable = errors.New("store unavailable")
)

// Repository is the persistence and catalog collaborator for the invoice
// engine. The catalog side (products, variants, customers) is read-only from
// the engine's point of view; CreateSale is the only write the engine ever
// performs.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	VariantQuote(ctx context.Context, sku string, size string, color string) (*domain.VariantQuote, error)

	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error)

	CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	GetSaleByID(ctx context.Context, id string) (*domain.SaleRecord, error)
	ListSales(ctx context.Context, params domain.SaleSearchParams) (domain.SaleListResponse, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Quote derives the unit price and available stock for a product + variant
// selection. Both store implementations share it so the snapshot semantics
// stay identical regardless of backend. A size or color price override wins
// over the base price (size first, matching the original catalog rules);
// stock is the tightest of the selected dimensions.
func Quote(product domain.Product, size string, color string) (*domain.VariantQuote, error) {
	quote := &domain.VariantQuote{
		SKU:            product.SKU,
		ProductID:      product.ID,
		ProductName:    product.Name,
		Size:           size,
		Color:          color,
		UnitPrice:      product.Price,
		AvailableStock: product.Stock,
	}

	if size != "" {
		variant, ok := findVariant(product.Sizes, size)
		if !ok {
			return nil, ErrNotFound
		}
		if variant.Price != nil {
			quote.UnitPrice = *variant.Price
		}
		if variant.Stock < quote.AvailableStock {
			quote.AvailableStock = variant.Stock
		}
	}
	if color != "" {
		variant, ok := findVariant(product.Colors, color)
		if !ok {
			return nil, ErrNotFound
		}
		if size == "" && variant.Price != nil {
			quote.UnitPrice = *variant.Price
		}
		if variant.Stock < quote.AvailableStock {
			quote.AvailableStock = variant.Stock
		}
	}

	return quote, nil
}

func findVariant(variants []domain.ProductVariant, name string) (domain.ProductVariant, bool) {
	for _, v := range variants {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return domain.ProductVariant{}, false
}
