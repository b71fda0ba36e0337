package clients

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"dataprofileservice/pkg/logger"
)

const connectionService = "connection-service"

// DatabaseConnection is one entry of the connection directory.
type DatabaseConnection struct {
	ConnectionID   int64  `json:"connectionId"`
	ConnectionName string `json:"connectionName"`
	Type           string `json:"type"`
}

// ConnectionClient resolves target connections.
type ConnectionClient interface {
	// ListDatabases returns every database connection known to the directory.
	ListDatabases(ctx context.Context) ([]DatabaseConnection, error)
	// ConnectionExists reports whether connectionID names a database connection.
	ConnectionExists(ctx context.Context, connectionID int64) (bool, error)
}

type connectionClient struct {
	client *resty.Client
}

// NewConnectionClient creates a connection-directory client rooted at baseURL.
func NewConnectionClient(baseURL string, timeout time.Duration, tokens oauth2.TokenSource) ConnectionClient {
	return &connectionClient{client: newRestClient(baseURL, timeout, tokens)}
}

func (c *connectionClient) ListDatabases(ctx context.Context) ([]DatabaseConnection, error) {
	var connections []DatabaseConnection
	if _, err := get(ctx, c.client, connectionService, "/connections/connection/database", nil, &connections); err != nil {
		logger.Errorf("Failed to list database connections: %v", err)
		return nil, err
	}
	return connections, nil
}

func (c *connectionClient) ConnectionExists(ctx context.Context, connectionID int64) (bool, error) {
	connections, err := c.ListDatabases(ctx)
	if err != nil {
		return false, err
	}
	for _, conn := range connections {
		if conn.ConnectionID == connectionID {
			return true, nil
		}
	}
	logger.Debugf("Connection %d not found among %d database connections", connectionID, len(connections))
	return false, nil
}
