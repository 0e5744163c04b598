package memory

import (
	"context"
	"log"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"garmentpos/backend/internal/domain"
	"garmentpos/backend/internal/store"
	"garmentpos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	productsBySKU   map[string]domain.Product
	customersByID   map[string]domain.Customer
	salesByID       map[string]domain.SaleRecord
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("[memory-store] bad seed amount %q: %v", s, err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func NewSeeded() *Store {
	products := []domain.Product{
		{
			ID: "prod-tee-classic", SKU: "TS-001", Name: "Classic Crew Tee", Category: "t-shirts", Brand: "Urban Thread",
			Price: dec("499"), MRP: dec("699"), Stock: 60, Active: true,
			Sizes: []domain.ProductVariant{
				{Name: "S", Stock: 12}, {Name: "M", Stock: 18}, {Name: "L", Stock: 20}, {Name: "XL", Stock: 10},
			},
			Colors: []domain.ProductVariant{
				{Name: "Black", Stock: 25}, {Name: "White", Stock: 20}, {Name: "Navy", Stock: 15},
			},
		},
		{
			ID: "prod-shirt-oxford", SKU: "SH-014", Name: "Oxford Button-Down", Category: "shirts", Brand: "Hemline",
			Price: dec("1299"), MRP: dec("1799"), Stock: 30, Active: true,
			Sizes: []domain.ProductVariant{
				{Name: "39", Stock: 8}, {Name: "40", Stock: 10}, {Name: "42", Stock: 8, Price: decPtr("1399")}, {Name: "44", Stock: 4, Price: decPtr("1399")},
			},
			Colors: []domain.ProductVariant{
				{Name: "Sky Blue", Stock: 16}, {Name: "White", Stock: 14},
			},
		},
		{
			ID: "prod-jeans-slim", SKU: "JN-220", Name: "Slim Fit Jeans", Category: "jeans", Brand: "Denver Denim",
			Price: dec("1899"), MRP: dec("2499"), Stock: 24, Active: true,
			Sizes: []domain.ProductVariant{
				{Name: "30", Stock: 6}, {Name: "32", Stock: 10}, {Name: "34", Stock: 6}, {Name: "36", Stock: 2},
			},
			Colors: []domain.ProductVariant{
				{Name: "Indigo", Stock: 14}, {Name: "Charcoal", Stock: 10},
			},
		},
		{
			ID: "prod-kurta-cotton", SKU: "KR-305", Name: "Cotton Kurta", Category: "ethnic", Brand: "Saanjh",
			Price: dec("899"), MRP: dec("1199"), Stock: 20, Active: true,
			Sizes: []domain.ProductVariant{
				{Name: "M", Stock: 8}, {Name: "L", Stock: 8}, {Name: "XL", Stock: 4},
			},
			Colors: []domain.ProductVariant{
				{Name: "Cream", Stock: 10}, {Name: "Maroon", Stock: 10},
			},
		},
		{
			ID: "prod-saree-silk", SKU: "SR-410", Name: "Art Silk Saree", Category: "sarees", Brand: "Saanjh",
			Price: dec("2499"), MRP: dec("3299"), Stock: 12, Active: true,
			Colors: []domain.ProductVariant{
				{Name: "Emerald", Stock: 4}, {Name: "Rani Pink", Stock: 5}, {Name: "Gold", Stock: 3},
			},
		},
		{
			ID: "prod-hoodie-zip", SKU: "HD-118", Name: "Zip-Up Hoodie", Category: "winterwear", Brand: "Urban Thread",
			Price: dec("1599"), MRP: dec("2099"), Stock: 16, Active: true,
			Sizes: []domain.ProductVariant{
				{Name: "M", Stock: 6}, {Name: "L", Stock: 7}, {Name: "XL", Stock: 3},
			},
			Colors: []domain.ProductVariant{
				{Name: "Grey Melange", Stock: 9}, {Name: "Black", Stock: 7},
			},
		},
		{
			ID: "prod-socks-ankle", SKU: "AC-902", Name: "Ankle Socks 3-Pack", Category: "accessories", Brand: "Hemline",
			Price: dec("249"), MRP: dec("349"), Stock: 80, Active: true,
		},
		{
			ID: "prod-belt-leather", SKU: "AC-917", Name: "Leather Belt", Category: "accessories", Brand: "Denver Denim",
			Price: dec("799"), MRP: dec("999"), Stock: 0, Active: true,
			Sizes: []domain.ProductVariant{
				{Name: "32", Stock: 0}, {Name: "36", Stock: 0},
			},
		},
	}

	customers := []domain.Customer{
		{ID: "cust-walkin", Name: "Walk-in Customer", CreatedAt: time.Now().UTC()},
		{ID: "cust-asha", Name: "Asha Traders", Phone: "9812000001", GSTNo: "27AAACA1111B1Z3", Wholesale: true, CreatedAt: time.Now().UTC()},
		{ID: "cust-ravi", Name: "Ravi Menon", Phone: "9812000002", Email: "ravi.menon@example.com", CreatedAt: time.Now().UTC()},
		{ID: "cust-leela", Name: "Leela Boutique", Phone: "9812000003", GSTNo: "29AABCL2222C1Z7", Wholesale: true, CreatedAt: time.Now().UTC()},
		{ID: "cust-farah", Name: "Farah Khan", Phone: "9812000004", CreatedAt: time.Now().UTC()},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.SKU] = p
	}
	customerMap := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		customerMap[c.ID] = c
	}

	return &Store{
		productsBySKU:   productMap,
		customersByID:   customerMap,
		salesByID:       make(map[string]domain.SaleRecord),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsBySKU))
	for _, p := range s.productsBySKU {
		if !p.Active {
			continue
		}
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsBySKU[strings.ToUpper(strings.TrimSpace(sku))]
	if !exists || !product.Active {
		return nil, store.ErrNotFound
	}
	copyProduct := cloneProduct(product)
	return &copyProduct, nil
}

func (s *Store) VariantQuote(_ context.Context, sku string, size string, color string) (*domain.VariantQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsBySKU[strings.ToUpper(strings.TrimSpace(sku))]
	if !exists || !product.Active {
		return nil, store.ErrNotFound
	}
	return store.Quote(product, size, color)
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) SearchCustomers(_ context.Context, query string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 20
	}
	query = strings.ToLower(strings.TrimSpace(query))

	customers := make([]domain.Customer, 0, limit)
	for _, c := range s.customersByID {
		if query != "" &&
			!strings.Contains(strings.ToLower(c.Name), query) &&
			!strings.Contains(c.Phone, query) {
			continue
		}
		customers = append(customers, c)
	}

	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	if len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 || strings.TrimSpace(sale.CustomerName) == "" {
		return nil, store.ErrInvalidSale
	}
	if sale.Total.IsNegative() {
		return nil, store.ErrInvalidSale
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidSale
	}
	if sale.InvoiceNumber == "" {
		sale.InvoiceNumber = xid.InvoiceNumber()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	s.salesByID[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, params domain.SaleSearchParams) (domain.SaleListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}
	invoiceQuery := strings.ToLower(strings.TrimSpace(params.InvoiceNumber))
	customerQuery := strings.ToLower(strings.TrimSpace(params.CustomerName))

	matched := make([]domain.SaleRecord, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if invoiceQuery != "" && !strings.Contains(strings.ToLower(sale.InvoiceNumber), invoiceQuery) {
			continue
		}
		if customerQuery != "" && !strings.Contains(strings.ToLower(sale.CustomerName), customerQuery) {
			continue
		}
		if params.Status != "" && sale.Status != params.Status {
			continue
		}
		if params.From != nil && sale.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && sale.CreatedAt.After(*params.To) {
			continue
		}
		matched = append(matched, sale)
	}

	slices.SortFunc(matched, func(a, b domain.SaleRecord) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	total := int64(len(matched))
	totalPages := int(math.Ceil(float64(total) / float64(params.Limit)))
	start := (params.Page - 1) * params.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + params.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]domain.SaleRecord, 0, end-start)
	for _, sale := range matched[start:end] {
		page = append(page, cloneSale(sale))
	}

	return domain.SaleListResponse{
		Sales:      page,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidSale
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneProduct(src domain.Product) domain.Product {
	dup := src
	dup.Sizes = cloneVariants(src.Sizes)
	dup.Colors = cloneVariants(src.Colors)
	return dup
}

func cloneVariants(src []domain.ProductVariant) []domain.ProductVariant {
	if src == nil {
		return nil
	}
	dup := make([]domain.ProductVariant, len(src))
	copy(dup, src)
	for i := range dup {
		if dup[i].Price != nil {
			price := *dup[i].Price
			dup[i].Price = &price
		}
	}
	return dup
}

func cloneSale(src domain.SaleRecord) domain.SaleRecord {
	dup := src
	items := make([]domain.LineItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
