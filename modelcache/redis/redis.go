// Package redis provides a modelcache.Cache shared through Redis. Models are
// stored as hierarchy.Snapshot JSON and rebound to live providers on Get via
// a Restorer, normally the hierarchy.Registry that created them.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/modelcache"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix carries a hash tag so every key of a cache maps to one
// Redis Cluster slot. The put script derives snapshot keys of evicted ids
// from the prefix, which cluster only allows within the slot of its KEYS.
const DefaultKeyPrefix = "{typehierarchy}:models:"

// Config for a Redis-backed cache. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. Custom prefixes need a {hash tag} on Redis
	// Cluster. ENV: TYPEHIERARCHY_REDIS_PREFIX
	KeyPrefix string `env:"TYPEHIERARCHY_REDIS_PREFIX,default={typehierarchy}:models:"`
	// Capacity is the number of models retained. ENV: TYPEHIERARCHY_CACHE_CAPACITY
	Capacity int `env:"TYPEHIERARCHY_CACHE_CAPACITY,default=10"`
}

// Restorer rebinds a snapshot to a provider.
type Restorer interface {
	Restore(s hierarchy.Snapshot) (*hierarchy.Model, error)
}

// Cache implements modelcache.Cache on Redis.
type Cache struct {
	client     *redis.Client
	ownsClient bool
	keyPrefix  string
	capacity   int
	restorer   Restorer
}

var _ modelcache.Cache = (*Cache)(nil)

// New wraps an existing client. The caller keeps ownership of client.
func New(client *redis.Client, restorer Restorer, cfg Config) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if restorer == nil {
		return nil, fmt.Errorf("restorer is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = modelcache.DefaultCapacity
	}
	if cfg.Capacity < 1 {
		return nil, modelcache.ErrInvalidCapacity
	}
	return &Cache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		capacity:  cfg.Capacity,
		restorer:  restorer,
	}, nil
}

// Dial connects to cfg.Addr and verifies the connection.
func Dial(ctx context.Context, cfg Config, restorer Restorer) (*Cache, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	c, err := New(cl, restorer, cfg)
	if err != nil {
		_ = cl.Close()
		return nil, err
	}
	c.ownsClient = true
	return c, nil
}

// DialFromEnv builds a Cache using envdecode to populate Config.
func DialFromEnv(ctx context.Context, restorer Restorer) (*Cache, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return Dial(ctx, cfg, restorer)
}

func (c *Cache) modelKey(id string) string { return c.keyPrefix + "model:" + id }
func (c *Cache) orderKey() string          { return c.keyPrefix + "order" }

// putScript stores the snapshot, appends new ids to the order list and trims
// the list to capacity, deleting evicted snapshots. It returns evicted ids.
var putScript = redis.NewScript(`
local model = KEYS[1]
local order = KEYS[2]
local payload = ARGV[1]
local id = ARGV[2]
local capacity = tonumber(ARGV[3])
local prefix = ARGV[4]
local existed = redis.call('EXISTS', model)
redis.call('SET', model, payload)
if existed == 0 then
  redis.call('RPUSH', order, id)
end
local evicted = {}
while redis.call('LLEN', order) > capacity do
  local old = redis.call('LPOP', order)
  redis.call('DEL', prefix .. old)
  table.insert(evicted, old)
end
return evicted
`)

// Put implements modelcache.Cache.
func (c *Cache) Put(ctx context.Context, m *hierarchy.Model) error {
	payload, err := json.Marshal(m.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	keys := []string{c.modelKey(m.ID()), c.orderKey()}
	if err := putScript.Run(ctx, c.client, keys, payload, m.ID(), c.capacity, c.keyPrefix+"model:").Err(); err != nil {
		return fmt.Errorf("failed to put model %s: %w", m.ID(), err)
	}
	return nil
}

// Get implements modelcache.Cache.
func (c *Cache) Get(ctx context.Context, id string) (*hierarchy.Model, error) {
	raw, err := c.client.Get(ctx, c.modelKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get model %s: %w", id, err)
	}
	var snap hierarchy.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return c.restorer.Restore(snap)
}

// Keys implements modelcache.Cache.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	ids, err := c.client.LRange(ctx, c.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return ids, nil
}

// Len implements modelcache.Cache.
func (c *Cache) Len(ctx context.Context) (int, error) {
	n, err := c.client.LLen(ctx, c.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count models: %w", err)
	}
	return int(n), nil
}

// Close closes the client when the cache created it.
func (c *Cache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
