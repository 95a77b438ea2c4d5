// Package floorapi is the client for the floor service that owns machines,
// sessions and payments.
package floorapi

import (
	"github.com/mcdev12/gamefloor/go/clients"
)

type FloorApiClient struct {
	*clients.BaseClient
}

// NewFloorApiClient creates a client for baseURL. token is the bearer
// credential supplied by the auth collaborator; empty sends no header.
func NewFloorApiClient(baseURL, token string) *FloorApiClient {
	client := &FloorApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if token != "" {
		client.SetHeader(AuthorizationHeader, BearerPrefix+token)
	}

	return client
}
