package testutils

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	mongoOnce      sync.Once
	mongoContainer testcontainers.Container
	mongoURI       string
	mongoErr       error
)

// MongoURI starts a shared mongo:7 container on first use and returns its URI.
// The test is skipped when no container runtime is reachable.
func MongoURI(t *testing.T) string {
	t.Helper()

	mongoOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		c, err := startMongo(ctx)
		if err != nil {
			mongoErr = err
			return
		}
		mongoContainer = c

		endpoint, err := c.Endpoint(ctx, "")
		if err != nil {
			_ = c.Terminate(context.Background())
			mongoErr = err
			return
		}
		mongoURI = fmt.Sprintf("mongodb://%s", endpoint)
	})

	if mongoErr != nil {
		t.Skipf("MongoDB container unavailable: %v", mongoErr)
	}
	return mongoURI
}

// startMongo recovers from the panic testcontainers raises when Docker is missing.
func startMongo(ctx context.Context) (c testcontainers.Container, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker not available: %v", r)
		}
	}()
	return testcontainers.Run(
		ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("mongod startup complete"),
		),
	)
}

// TerminateMongo stops the shared container. Call it from TestMain after m.Run.
func TerminateMongo() {
	if mongoContainer != nil {
		_ = mongoContainer.Terminate(context.Background())
	}
}
