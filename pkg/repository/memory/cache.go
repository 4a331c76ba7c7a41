package memory

import (
	"context"
	"sync"

	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
)

// Cache is an in-process identity and category cache without expiry.
type Cache struct {
	mu         sync.Mutex
	identities map[string]models.Identity
	categories []models.CategoryCount
}

func NewCache() *Cache {
	return &Cache{identities: make(map[string]models.Identity)}
}

func (c *Cache) GetIdentity(_ context.Context, userID string) (*models.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	identity, ok := c.identities[userID]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (c *Cache) SetIdentity(_ context.Context, identity *models.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities[identity.UserID.Hex()] = *identity
	return nil
}

func (c *Cache) DeleteIdentity(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.identities, userID)
	return nil
}

func (c *Cache) GetCategories(_ context.Context) ([]models.CategoryCount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.categories == nil {
		return nil, nil
	}
	return append([]models.CategoryCount{}, c.categories...), nil
}

func (c *Cache) SetCategories(_ context.Context, categories []models.CategoryCount) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = append([]models.CategoryCount{}, categories...)
	return nil
}

func (c *Cache) InvalidateCategories(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = nil
	return nil
}

var (
	_ service.IdentityCache = (*Cache)(nil)
	_ service.CategoryCache = (*Cache)(nil)
)
