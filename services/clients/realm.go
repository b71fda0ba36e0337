package clients

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
)

const keycloakService = "keycloak"

type realmInfo struct {
	Realm     string `json:"realm"`
	PublicKey string `json:"public_key"`
}

// FetchRealmPublicKey reads the realm's token signing key from
// ${serverURL}/realms/${realm}. The key is returned as published: bare base64 DER.
func FetchRealmPublicKey(ctx context.Context, serverURL, realm string, timeout time.Duration) (string, error) {
	client := resty.New().
		SetBaseURL(serverURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	var info realmInfo
	if _, err := get(ctx, client, keycloakService, "/realms/"+realm, nil, &info); err != nil {
		return "", err
	}
	if info.PublicKey == "" {
		return "", errors.New("realm " + realm + " publishes no public key")
	}
	return info.PublicKey, nil
}
