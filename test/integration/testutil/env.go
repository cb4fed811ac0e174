//go:build integration

package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"tourbook/pkg/auth"
	"tourbook/pkg/client"
)

type TestEnv struct {
	MongoURI       string
	DatabaseName   string
	CustomToursURL string
	BookingsURL    string
	JWTSecret      string
}

func NewTestEnv() *TestEnv {
	return &TestEnv{
		MongoURI:       getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName:   getEnv("TEST_DB_NAME", DefaultDatabaseName),
		CustomToursURL: getEnv("TEST_CUSTOMTOURS_URL", "http://localhost:8080"),
		BookingsURL:    getEnv("TEST_BOOKINGS_URL", "http://localhost:8081"),
		JWTSecret:      getEnv("TEST_JWT_SECRET", getEnv("JWT_SECRET", "")),
	}
}

// Setup cleans the database and waits for the service at baseURL.
func (e *TestEnv) Setup(t *testing.T, baseURL string) (*MongoHelper, *client.HttpClient) {
	t.Helper()

	if e.JWTSecret == "" {
		t.Fatal("TEST_JWT_SECRET or JWT_SECRET must match the services under test")
	}

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanDatabase(t)

	httpClient := client.NewHttpClient(baseURL)
	if err := httpClient.WaitForHealthy(context.Background(), DefaultHealthCheckTimeout); err != nil {
		t.Fatalf("%s: %v", baseURL, err)
	}
	t.Logf("Service at %s is healthy", baseURL)

	return mongo, httpClient
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanDatabase(t)
		mongo.Close(t)
	}
}

// Token signs a bearer token the services under test accept.
func (e *TestEnv) Token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()

	token, err := auth.NewJWT(e.JWTSecret, time.Hour).Sign(auth.Identity{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const (
	DefaultHealthCheckTimeout = 30 * time.Second
)
