// Package mongo implements the repository contract on MongoDB.
// Documents use the uuid string form as _id and keep references as arrays of id strings.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	productsCollection = "products"
	storesCollection   = "stores"
)

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Price     float64   `bson:"price"`
	Type      string    `bson:"type"`
	Stores    []string  `bson:"stores"`
	CreatedAt time.Time `bson:"createdAt"`
}

type storeDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	City      string    `bson:"city"`
	Address   string    `bson:"address"`
	Products  []string  `bson:"products"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoCatalog is a repository.Catalog backed by a MongoDB database.
// InTx needs a replica set or sharded cluster.
type MongoCatalog struct {
	db *mongo.Database
}

var _ repository.Catalog = (*MongoCatalog)(nil)

// NewMongoCatalog creates a catalog over the products and stores collections of db.
func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{db: db}
}

// EnsureIndexes creates the collections' secondary indexes. It is safe to call repeatedly.
func (c *MongoCatalog) EnsureIndexes(ctx context.Context) error {
	byCreation := mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}
	if _, err := c.db.Collection(productsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		byCreation,
		{Keys: bson.D{{Key: "stores", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	if _, err := c.db.Collection(storesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		byCreation,
		{Keys: bson.D{{Key: "products", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create store indexes: %w", err)
	}
	return nil
}

func (c *MongoCatalog) Products() repository.ProductRepository {
	return &productStore{coll: c.db.Collection(productsCollection)}
}

func (c *MongoCatalog) Stores() repository.StoreRepository {
	return &storeStore{coll: c.db.Collection(storesCollection)}
}

// InTx runs fn inside a multi-document transaction.
// The driver retries fn on transient transaction errors, so fn may run more than once.
func (c *MongoCatalog) InTx(ctx context.Context, fn func(tx repository.Catalog) error) error {
	session, err := c.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("%w: %w", catalogerrors.ErrTransactionBegin, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(&txCatalog{db: c.db, session: session})
	})
	return err
}

type txCatalog struct {
	db      *mongo.Database
	session mongo.Session
}

func (t *txCatalog) Products() repository.ProductRepository {
	return &productStore{coll: t.db.Collection(productsCollection), session: t.session}
}

func (t *txCatalog) Stores() repository.StoreRepository {
	return &storeStore{coll: t.db.Collection(storesCollection), session: t.session}
}

// InTx joins the running transaction.
func (t *txCatalog) InTx(_ context.Context, fn func(tx repository.Catalog) error) error {
	return fn(t)
}

// bind attaches the transaction session, if any, to the caller's context.
func bind(ctx context.Context, session mongo.Session) context.Context {
	if session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, session)
}

func toStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func toUUIDs(ids []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("malformed reference %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

var afterUpdate = options.FindOneAndUpdate().SetReturnDocument(options.After)
var inCreationOrder = options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

type productStore struct {
	coll    *mongo.Collection
	session mongo.Session
}

func (d productDoc) toProduct() (*repository.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed product id %q: %w", d.ID, err)
	}
	stores, err := toUUIDs(d.Stores)
	if err != nil {
		return nil, err
	}
	return &repository.Product{
		ID:     id,
		Name:   d.Name,
		Price:  d.Price,
		Type:   repository.ProductType(d.Type),
		Stores: stores,
	}, nil
}

func (s *productStore) decodeOne(res *mongo.SingleResult, op string) (*repository.Product, error) {
	var doc productDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to %s product: %w", op, err)
	}
	return doc.toProduct()
}

func (s *productStore) FindByID(ctx context.Context, id uuid.UUID) (*repository.Product, error) {
	ctx = bind(ctx, s.session)
	return s.decodeOne(s.coll.FindOne(ctx, bson.M{"_id": id.String()}), "find")
}

func (s *productStore) FindAll(ctx context.Context) ([]repository.Product, error) {
	ctx = bind(ctx, s.session)
	cur, err := s.coll.Find(ctx, bson.M{}, inCreationOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	list := make([]repository.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toProduct()
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, nil
}

func (s *productStore) Create(ctx context.Context, name string, price float64, productType repository.ProductType) (*repository.Product, error) {
	ctx = bind(ctx, s.session)
	doc := productDoc{
		ID:        uuid.NewString(),
		Name:      name,
		Price:     price,
		Type:      string(productType),
		Stores:    []string{},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return doc.toProduct()
}

func (s *productStore) Update(ctx context.Context, id uuid.UUID, patch repository.ProductPatch) (*repository.Product, error) {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Type != nil {
		set["type"] = string(*patch.Type)
	}
	if len(set) == 0 {
		return s.FindByID(ctx, id)
	}
	ctx = bind(ctx, s.session)
	return s.decodeOne(s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, afterUpdate), "update")
}

func (s *productStore) SetStores(ctx context.Context, id uuid.UUID, storeIDs []uuid.UUID) (*repository.Product, error) {
	ctx = bind(ctx, s.session)
	update := bson.M{"$set": bson.M{"stores": toStrings(storeIDs)}}
	return s.decodeOne(s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, update, afterUpdate), "update stores of")
}

func (s *productStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	ctx = bind(ctx, s.session)
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return catalogerrors.ErrProductNotFound
	}
	return nil
}

type storeStore struct {
	coll    *mongo.Collection
	session mongo.Session
}

func (d storeDoc) toStore() (*repository.Store, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed store id %q: %w", d.ID, err)
	}
	products, err := toUUIDs(d.Products)
	if err != nil {
		return nil, err
	}
	return &repository.Store{
		ID:       id,
		Name:     d.Name,
		City:     d.City,
		Address:  d.Address,
		Products: products,
	}, nil
}

func (s *storeStore) decodeOne(res *mongo.SingleResult, op string) (*repository.Store, error) {
	var doc storeDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalogerrors.ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to %s store: %w", op, err)
	}
	return doc.toStore()
}

func (s *storeStore) find(ctx context.Context, filter bson.M) ([]repository.Store, error) {
	ctx = bind(ctx, s.session)
	cur, err := s.coll.Find(ctx, filter, inCreationOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	var docs []storeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode stores: %w", err)
	}
	list := make([]repository.Store, 0, len(docs))
	for _, d := range docs {
		st, err := d.toStore()
		if err != nil {
			return nil, err
		}
		list = append(list, *st)
	}
	return list, nil
}

func (s *storeStore) FindByID(ctx context.Context, id uuid.UUID) (*repository.Store, error) {
	ctx = bind(ctx, s.session)
	return s.decodeOne(s.coll.FindOne(ctx, bson.M{"_id": id.String()}), "find")
}

func (s *storeStore) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]repository.Store, error) {
	return s.find(ctx, bson.M{"_id": bson.M{"$in": toStrings(ids)}})
}

func (s *storeStore) FindAll(ctx context.Context) ([]repository.Store, error) {
	return s.find(ctx, bson.M{})
}

func (s *storeStore) Create(ctx context.Context, name, city, address string) (*repository.Store, error) {
	ctx = bind(ctx, s.session)
	doc := storeDoc{
		ID:        uuid.NewString(),
		Name:      name,
		City:      city,
		Address:   address,
		Products:  []string{},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return doc.toStore()
}

func (s *storeStore) Update(ctx context.Context, id uuid.UUID, patch repository.StorePatch) (*repository.Store, error) {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.City != nil {
		set["city"] = *patch.City
	}
	if patch.Address != nil {
		set["address"] = *patch.Address
	}
	if len(set) == 0 {
		return s.FindByID(ctx, id)
	}
	ctx = bind(ctx, s.session)
	return s.decodeOne(s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, afterUpdate), "update")
}

func (s *storeStore) SetProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) (*repository.Store, error) {
	ctx = bind(ctx, s.session)
	update := bson.M{"$set": bson.M{"products": toStrings(productIDs)}}
	return s.decodeOne(s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, update, afterUpdate), "update products of")
}

func (s *storeStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	ctx = bind(ctx, s.session)
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete store: %w", err)
	}
	if res.DeletedCount == 0 {
		return catalogerrors.ErrStoreNotFound
	}
	return nil
}
