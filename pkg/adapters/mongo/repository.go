package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	_ ports.UserRepository    = (*UserRepository)(nil)
	_ ports.ProductRepository = (*ProductRepository)(nil)
)

// UserRepository implements ports.UserRepository on a MongoDB collection.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(UsersCollection)}
}

func (r *UserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := upsert(ctx, r.coll, user.ID, user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	if err := findOne(ctx, r.coll, id, &u); err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

func (r *UserRepository) FindByName(ctx context.Context, name string) ([]domain.User, error) {
	return findMany[domain.User](ctx, r.coll, bson.M{"name": name}, bson.D{{Key: "_id", Value: 1}})
}

func (r *UserRepository) FindByEmailPattern(ctx context.Context, pattern string) ([]domain.User, error) {
	filter := bson.M{"email": bson.M{"$regex": pattern}}
	return findMany[domain.User](ctx, r.coll, filter, bson.D{{Key: "_id", Value: 1}})
}

// ProductRepository implements ports.ProductRepository on a MongoDB collection.
type ProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(ProductsCollection)}
}

func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if err := upsert(ctx, r.coll, product.ID, product); err != nil {
		return domain.Product{}, fmt.Errorf("save product: %w", err)
	}
	return product, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	if err := findOne(ctx, r.coll, id, &p); err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, err)
	}
	return p, nil
}

func (r *ProductRepository) FindByPriceGreaterThan(ctx context.Context, price float64) ([]domain.Product, error) {
	filter := bson.M{"price": bson.M{"$gt": price}}
	return findMany[domain.Product](ctx, r.coll, filter, bson.D{{Key: "price", Value: -1}})
}

func upsert(ctx context.Context, coll *mongo.Collection, id string, doc any) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func findOne(ctx context.Context, coll *mongo.Collection, id string, out any) error {
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrDocumentNotFound
	}
	return err
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, sort bson.D) ([]T, error) {
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}
