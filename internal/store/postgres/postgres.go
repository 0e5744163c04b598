package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"garmentpos/backend/internal/domain"
	"garmentpos/backend/internal/store"
	"garmentpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, category, COALESCE(brand,''), price, mrp, stock, active
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	index := make(map[string]int, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Brand, &p.Price, &p.MRP, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		index[p.SKU] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	variantRows, err := s.db.QueryContext(ctx, `
		SELECT product_sku, dimension, name, stock, price
		FROM product_variants
		ORDER BY product_sku, dimension, position
	`)
	if err != nil {
		return nil, err
	}
	defer variantRows.Close()

	for variantRows.Next() {
		sku, dimension, variant, err := scanVariant(variantRows)
		if err != nil {
			return nil, err
		}
		i, ok := index[sku]
		if !ok {
			continue
		}
		switch dimension {
		case "size":
			products[i].Sizes = append(products[i].Sizes, variant)
		case "color":
			products[i].Colors = append(products[i].Colors, variant)
		}
	}
	if err := variantRows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))

	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sku, name, category, COALESCE(brand,''), price, mrp, stock, active
		FROM products
		WHERE sku = $1 AND active = true
	`, sku).Scan(&product.ID, &product.SKU, &product.Name, &product.Category, &product.Brand, &product.Price, &product.MRP, &product.Stock, &product.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_sku, dimension, name, stock, price
		FROM product_variants
		WHERE product_sku = $1
		ORDER BY dimension, position
	`, sku)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		_, dimension, variant, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		switch dimension {
		case "size":
			product.Sizes = append(product.Sizes, variant)
		case "color":
			product.Colors = append(product.Colors, variant)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &product, nil
}

func (s *Store) VariantQuote(ctx context.Context, sku string, size string, color string) (*domain.VariantQuote, error) {
	product, err := s.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	return store.Quote(*product, size, color)
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), COALESCE(gst_no,''), wholesale, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.Email, &customer.Address, &customer.GSTNo, &customer.Wholesale, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return &customer, nil
}

func (s *Store) SearchCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), COALESCE(gst_no,''), wholesale, created_at
		FROM customers
		WHERE lower(name) LIKE $1 OR phone LIKE $1
		ORDER BY name
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, limit)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.GSTNo, &c.Wholesale, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if len(sale.Items) == 0 || strings.TrimSpace(sale.CustomerName) == "" {
		return nil, store.ErrInvalidSale
	}
	if sale.Total.IsNegative() {
		return nil, store.ErrInvalidSale
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, customer_id, customer_name, customer_phone, customer_gst_no,
			subtotal, discount, tax, savings, extra_less, total,
			cash_amount, card_amount, upi_amount, bank_transfer_amount, change_given,
			status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, sale.ID, sale.InvoiceNumber, nullIfEmpty(sale.CustomerID), sale.CustomerName, nullIfEmpty(sale.CustomerPhone), nullIfEmpty(sale.CustomerGSTNo),
		sale.Subtotal, sale.Discount, sale.Tax, sale.Savings, sale.ExtraLess, sale.Total,
		sale.Payment.CashAmount, sale.Payment.CardAmount, sale.Payment.UPIAmount, sale.Payment.BankTransferAmount, sale.Payment.ChangeGiven,
		sale.Status, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidSale
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, line_id, product_id, product_name, sku, size, color, qty, unit_price, discount, total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, sale.ID, item.ID, item.ProductID, item.ProductName, item.SKU, nullIfEmpty(item.Size), nullIfEmpty(item.Color), item.Quantity, item.UnitPrice, item.Discount, item.Total)
		if err != nil {
			return nil, err
		}

		// Decrement the selected dimensions and the base stock together so a
		// concurrent sale of the same variant cannot oversell.
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now()
			WHERE sku = $1
		`, item.SKU, item.Quantity)
		if err != nil {
			return nil, err
		}
		for _, dim := range []struct {
			dimension string
			name      string
		}{
			{"size", item.Size},
			{"color", item.Color},
		} {
			if dim.name == "" {
				continue
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE product_variants SET stock = GREATEST(stock - $3, 0)
				WHERE product_sku = $1 AND dimension = $2 AND lower(name) = lower($4)
			`, item.SKU, dim.dimension, item.Quantity, dim.name)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.SaleRecord, error) {
	sale, err := s.scanSale(ctx, s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, COALESCE(customer_id,''), customer_name, COALESCE(customer_phone,''), COALESCE(customer_gst_no,''),
			subtotal, discount, tax, savings, extra_less, total,
			cash_amount, card_amount, upi_amount, bank_transfer_amount, change_given,
			status, created_at
		FROM sales
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	items, err := s.saleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, params domain.SaleSearchParams) (domain.SaleListResponse, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 10
	}

	where := make([]string, 0, 5)
	args := make([]any, 0, 5)
	addArg := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q := strings.TrimSpace(params.InvoiceNumber); q != "" {
		addArg("lower(invoice_number) LIKE $%d", "%"+strings.ToLower(q)+"%")
	}
	if q := strings.TrimSpace(params.CustomerName); q != "" {
		addArg("lower(customer_name) LIKE $%d", "%"+strings.ToLower(q)+"%")
	}
	if params.Status != "" {
		addArg("status = $%d", params.Status)
	}
	if params.From != nil {
		addArg("created_at >= $%d", *params.From)
	}
	if params.To != nil {
		addArg("created_at <= $%d", *params.To)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sales "+whereSQL, args...).Scan(&total); err != nil {
		return domain.SaleListResponse{}, err
	}

	pageArgs := append(args, params.Limit, (params.Page-1)*params.Limit)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, invoice_number, COALESCE(customer_id,''), customer_name, COALESCE(customer_phone,''), COALESCE(customer_gst_no,''),
			subtotal, discount, tax, savings, extra_less, total,
			cash_amount, card_amount, upi_amount, bank_transfer_amount, change_given,
			status, created_at
		FROM sales
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, whereSQL, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, params.Limit)
	for rows.Next() {
		sale, err := s.scanSale(ctx, rows)
		if err != nil {
			return domain.SaleListResponse{}, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return domain.SaleListResponse{}, err
	}

	for i := range sales {
		items, err := s.saleItems(ctx, sales[i].ID)
		if err != nil {
			return domain.SaleListResponse{}, err
		}
		sales[i].Items = items
	}

	return domain.SaleListResponse{
		Sales:      sales,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(params.Limit))),
	}, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidSale
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSale(_ context.Context, row rowScanner) (*domain.SaleRecord, error) {
	var sale domain.SaleRecord
	err := row.Scan(
		&sale.ID,
		&sale.InvoiceNumber,
		&sale.CustomerID,
		&sale.CustomerName,
		&sale.CustomerPhone,
		&sale.CustomerGSTNo,
		&sale.Subtotal,
		&sale.Discount,
		&sale.Tax,
		&sale.Savings,
		&sale.ExtraLess,
		&sale.Total,
		&sale.Payment.CashAmount,
		&sale.Payment.CardAmount,
		&sale.Payment.UPIAmount,
		&sale.Payment.BankTransferAmount,
		&sale.Payment.ChangeGiven,
		&sale.Status,
		&sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) saleItems(ctx context.Context, saleID string) ([]domain.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line_id, product_id, product_name, sku, COALESCE(size,''), COALESCE(color,''), qty, unit_price, discount, total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0, 8)
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.SKU, &item.Size, &item.Color, &item.Quantity, &item.UnitPrice, &item.Discount, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanVariant(rows *sql.Rows) (string, string, domain.ProductVariant, error) {
	var sku string
	var dimension string
	var variant domain.ProductVariant
	var price decimal.NullDecimal
	if err := rows.Scan(&sku, &dimension, &variant.Name, &variant.Stock, &price); err != nil {
		return "", "", domain.ProductVariant{}, err
	}
	if price.Valid {
		p := price.Decimal
		variant.Price = &p
	}
	return sku, dimension, variant, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
