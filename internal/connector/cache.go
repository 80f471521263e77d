package connector

import (
	"context"
	"log"
	"strings"
	"time"
)

const (
	teamNameTTL     = 24 * time.Hour
	conversationTTL = 7 * 24 * time.Hour
)

// Cache is the key/value store CachedClient keeps lookups in.
type Cache interface {
	GetCache(ctx context.Context, key string, dest interface{}) error
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedClient remembers team names and 1:1 conversation ids so repeated
// runs don't hit the connector for data that rarely changes. Cache failures
// fall through to the wrapped client.
type CachedClient struct {
	Client
	cache Cache
}

func NewCachedClient(inner Client, cache Cache) *CachedClient {
	return &CachedClient{Client: inner, cache: cache}
}

func (c *CachedClient) GetTeamName(ctx context.Context, serviceURL, teamID string) (string, error) {
	key := "team-name:" + teamID

	var name string
	if err := c.cache.GetCache(ctx, key, &name); err == nil && name != "" {
		return name, nil
	}

	name, err := c.Client.GetTeamName(ctx, serviceURL, teamID)
	if err != nil {
		return "", err
	}
	if err := c.cache.SetCache(ctx, key, name, teamNameTTL); err != nil {
		log.Printf("[Connector] Failed to cache team name for %s: %v", teamID, err)
	}
	return name, nil
}

func (c *CachedClient) CreateOrGetDirectConversation(ctx context.Context, serviceURL string, bot, user ChannelAccount, tenantID string) (*ConversationResourceResponse, error) {
	key := "conversation:" + strings.ToLower(strings.TrimRight(serviceURL, "/")) + ":" + tenantID + ":" + user.ID

	var cached ConversationResourceResponse
	if err := c.cache.GetCache(ctx, key, &cached); err == nil && cached.ID != "" {
		return &cached, nil
	}

	resp, err := c.Client.CreateOrGetDirectConversation(ctx, serviceURL, bot, user, tenantID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetCache(ctx, key, resp, conversationTTL); err != nil {
		log.Printf("[Connector] Failed to cache conversation for user %s: %v", user.ID, err)
	}
	return resp, nil
}
