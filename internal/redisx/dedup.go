package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers handled event ids per consuming service.
type Dedup struct {
	Client  *redis.Client
	Service string
}

func NewDedup(c *redis.Client, service string) *Dedup {
	return &Dedup{Client: c, Service: service}
}

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.Client, fmt.Sprintf(KeyDedup, d.Service, eventID))
}

func (d *Dedup) Mark(ctx context.Context, eventID string) error {
	return d.Client.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Err()
}
