package mongo_test

import (
	"context"
	"os"
	"testing"

	"github.com/aretw0/bpmgate/internal/testutils"
	"github.com/aretw0/bpmgate/pkg/adapters/mongo"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutils.TerminateMongo()
	os.Exit(code)
}

func openDatasources(t *testing.T) *mongo.Datasources {
	t.Helper()
	uri := testutils.MongoURI(t)

	ds, err := mongo.Open(context.Background(), mongo.Config{
		Primary:   mongo.Source{URI: uri, Database: "bpmgate_primary_test"},
		Secondary: mongo.Source{URI: uri, Database: "bpmgate_secondary_test"},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = ds.Primary().Drop(ctx)
		_ = ds.Secondary().Drop(ctx)
		_ = ds.Close(ctx)
	})
	return ds
}

func TestUserRepository_Contract(t *testing.T) {
	ports.RunUserRepositoryContract(t, openDatasources(t).Users())
}

func TestProductRepository_Contract(t *testing.T) {
	ports.RunProductRepositoryContract(t, openDatasources(t).Products())
}

func TestDatasources_AreSeparate(t *testing.T) {
	ds := openDatasources(t)
	ctx := context.Background()

	_, err := ds.Users().Save(ctx, domain.User{Name: "Ana", Email: "ana@gmail.com"})
	require.NoError(t, err)
	_, err = ds.Products().Save(ctx, domain.Product{Name: "Laptop", Price: 1500})
	require.NoError(t, err)

	n, err := ds.Primary().Collection(mongo.ProductsCollection).CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Zero(t, n, "products never land on the primary datasource")

	n, err = ds.Secondary().Collection(mongo.UsersCollection).CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Zero(t, n, "users never land on the secondary datasource")
}

func TestOpen_RequiresURI(t *testing.T) {
	_, err := mongo.Open(context.Background(), mongo.Config{})
	assert.ErrorContains(t, err, "primary datasource")
}
