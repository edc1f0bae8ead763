package tokens

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/dexsim/pkg/cache"
)

// metadataTTL bounds how long token metadata stays cached. Symbol and
// decimals are immutable in practice; the TTL just bounds memory.
const metadataTTL = time.Hour

// CachedMetadataClient wraps a MetadataClient with a cache so each token is
// read from the chain at most once per batch.
type CachedMetadataClient struct {
	client *MetadataClient
	cache  cache.Cache
}

// NewCachedMetadataClient creates a caching wrapper around client.
func NewCachedMetadataClient(client *MetadataClient, c cache.Cache) *CachedMetadataClient {
	return &CachedMetadataClient{
		client: client,
		cache:  c,
	}
}

// Fetch returns cached metadata for the token, reading through on a miss.
func (c *CachedMetadataClient) Fetch(ctx context.Context, token common.Address) *Metadata {
	key := "token-meta:" + token.Hex()

	if cached, found := c.cache.Get(key); found {
		if meta, ok := cached.(*Metadata); ok {
			return meta
		}
	}

	meta := c.client.Fetch(ctx, token)
	c.cache.Set(key, meta, metadataTTL)

	return meta
}
