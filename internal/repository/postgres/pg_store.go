// Package postgres implements the repository contract on PostgreSQL.
// Reference lists are stored as uuid[] columns on each row.
package postgres

import (
	"context"
	"errors"
	"fmt"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgCatalog is a repository.Catalog backed by a pgx connection pool.
type PgCatalog struct {
	db *pgxpool.Pool
}

var _ repository.Catalog = (*PgCatalog)(nil)

// NewPgCatalog creates a new instance of PgCatalog using a PostgreSQL connection pool.
func NewPgCatalog(dbp *pgxpool.Pool) *PgCatalog {
	return &PgCatalog{db: dbp}
}

func (c *PgCatalog) Products() repository.ProductRepository {
	return &productStore{q: c.db}
}

func (c *PgCatalog) Stores() repository.StoreRepository {
	return &storeStore{q: c.db}
}

// InTx runs fn inside a single database transaction.
// Reads made through the transactional repositories take row locks with FOR UPDATE.
func (c *PgCatalog) InTx(ctx context.Context, fn func(tx repository.Catalog) error) error {
	return c.withTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&txCatalog{tx: tx})
	})
}

func (c *PgCatalog) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", catalogerrors.ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", catalogerrors.ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", catalogerrors.ErrTransactionCommit, err)
	}

	return nil
}

type txCatalog struct {
	tx pgx.Tx
}

func (t *txCatalog) Products() repository.ProductRepository {
	return &productStore{q: t.tx, forUpdate: true}
}

func (t *txCatalog) Stores() repository.StoreRepository {
	return &storeStore{q: t.tx, forUpdate: true}
}

// InTx joins the running transaction.
func (t *txCatalog) InTx(_ context.Context, fn func(tx repository.Catalog) error) error {
	return fn(t)
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// ids never reaches the database as NULL; the columns are NOT NULL.
func ids(v []uuid.UUID) []uuid.UUID {
	if v == nil {
		return []uuid.UUID{}
	}
	return v
}

const productColumns = "id, name, price, type, store_ids"

type productStore struct {
	q         querier
	forUpdate bool
}

func scanProduct(row pgx.Row) (*repository.Product, error) {
	var p repository.Product
	var productType string
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &productType, &p.Stores); err != nil {
		return nil, err
	}
	p.Type = repository.ProductType(productType)
	p.Stores = ids(p.Stores)
	return &p, nil
}

func (s *productStore) one(ctx context.Context, op, sql string, args ...any) (*repository.Product, error) {
	p, err := scanProduct(s.q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalogerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to %s product: %w", op, err)
	}
	return p, nil
}

func (s *productStore) FindByID(ctx context.Context, id uuid.UUID) (*repository.Product, error) {
	return s.one(ctx, "find",
		"SELECT "+productColumns+" FROM products WHERE id = $1"+lockClause(s.forUpdate), id)
}

func (s *productStore) FindAll(ctx context.Context) ([]repository.Product, error) {
	rows, err := s.q.Query(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	list := make([]repository.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		list = append(list, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return list, nil
}

func (s *productStore) Create(ctx context.Context, name string, price float64, productType repository.ProductType) (*repository.Product, error) {
	return s.one(ctx, "create",
		"INSERT INTO products (name, price, type) VALUES ($1, $2, $3) RETURNING "+productColumns,
		name, price, string(productType))
}

func (s *productStore) Update(ctx context.Context, id uuid.UUID, patch repository.ProductPatch) (*repository.Product, error) {
	var productType *string
	if patch.Type != nil {
		t := string(*patch.Type)
		productType = &t
	}
	return s.one(ctx, "update",
		`UPDATE products
		    SET name  = COALESCE($2, name),
		        price = COALESCE($3, price),
		        type  = COALESCE($4, type)
		  WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Name, patch.Price, productType)
}

func (s *productStore) SetStores(ctx context.Context, id uuid.UUID, storeIDs []uuid.UUID) (*repository.Product, error) {
	return s.one(ctx, "update stores of",
		"UPDATE products SET store_ids = $2 WHERE id = $1 RETURNING "+productColumns,
		id, ids(storeIDs))
}

func (s *productStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalogerrors.ErrProductNotFound
	}
	return nil
}

const storeColumns = "id, name, city, address, product_ids"

type storeStore struct {
	q         querier
	forUpdate bool
}

func scanStore(row pgx.Row) (*repository.Store, error) {
	var st repository.Store
	if err := row.Scan(&st.ID, &st.Name, &st.City, &st.Address, &st.Products); err != nil {
		return nil, err
	}
	st.Products = ids(st.Products)
	return &st, nil
}

func (s *storeStore) one(ctx context.Context, op, sql string, args ...any) (*repository.Store, error) {
	st, err := scanStore(s.q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalogerrors.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to %s store: %w", op, err)
	}
	return st, nil
}

func (s *storeStore) many(ctx context.Context, sql string, args ...any) ([]repository.Store, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	list := make([]repository.Store, 0)
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		list = append(list, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return list, nil
}

func (s *storeStore) FindByID(ctx context.Context, id uuid.UUID) (*repository.Store, error) {
	return s.one(ctx, "find",
		"SELECT "+storeColumns+" FROM stores WHERE id = $1"+lockClause(s.forUpdate), id)
}

// FindByIDs orders by id so concurrent transactions lock rows in the same order.
func (s *storeStore) FindByIDs(ctx context.Context, storeIDs []uuid.UUID) ([]repository.Store, error) {
	return s.many(ctx,
		"SELECT "+storeColumns+" FROM stores WHERE id = ANY($1) ORDER BY id"+lockClause(s.forUpdate),
		ids(storeIDs))
}

func (s *storeStore) FindAll(ctx context.Context) ([]repository.Store, error) {
	return s.many(ctx, "SELECT "+storeColumns+" FROM stores ORDER BY created_at, id")
}

func (s *storeStore) Create(ctx context.Context, name, city, address string) (*repository.Store, error) {
	return s.one(ctx, "create",
		"INSERT INTO stores (name, city, address) VALUES ($1, $2, $3) RETURNING "+storeColumns,
		name, city, address)
}

func (s *storeStore) Update(ctx context.Context, id uuid.UUID, patch repository.StorePatch) (*repository.Store, error) {
	return s.one(ctx, "update",
		`UPDATE stores
		    SET name    = COALESCE($2, name),
		        city    = COALESCE($3, city),
		        address = COALESCE($4, address)
		  WHERE id = $1
		RETURNING `+storeColumns,
		id, patch.Name, patch.City, patch.Address)
}

func (s *storeStore) SetProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) (*repository.Store, error) {
	return s.one(ctx, "update products of",
		"UPDATE stores SET product_ids = $2 WHERE id = $1 RETURNING "+storeColumns,
		id, ids(productIDs))
}

func (s *storeStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM stores WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalogerrors.ErrStoreNotFound
	}
	return nil
}
