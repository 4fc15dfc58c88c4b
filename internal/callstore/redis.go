package callstore

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaspardpetit/callrelay/internal/telephony"
)

const keyPrefix = "callrelay:call:"

// RedisStore keeps records in Redis so status callbacks and API lookups can
// land on any replica.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore connects to the given Redis URL. Plain host:port strings
// are accepted as well as redis://, rediss:// and redis-sentinel:// URLs.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: c, ttl: ttl}, nil
}

func (r *RedisStore) Close() error { return r.client.Close() }

func key(sid string) string { return keyPrefix + sid }

func (r *RedisStore) Create(ctx context.Context, c Call) error {
	_, err := r.update(ctx, c.SID, func(cur Call) Call { return mergeCreate(cur, c) })
	return err
}

func (r *RedisStore) UpdateStatus(ctx context.Context, sid string, status telephony.CallStatus, at time.Time) (Call, error) {
	return r.update(ctx, sid, func(cur Call) Call { return applyStatus(cur, sid, status, at) })
}

// update reads, transforms and writes one record inside a WATCH
// transaction so concurrent callbacks for a call do not lose updates.
func (r *RedisStore) update(ctx context.Context, sid string, fn func(Call) Call) (Call, error) {
	var out Call
	k := key(sid)
	txf := func(tx *redis.Tx) error {
		cur, err := r.load(ctx, tx, k)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		out = fn(cur)
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, b, r.ttl)
			return nil
		})
		return err
	}
	for range 5 {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Call{}, err
		}
		return out, nil
	}
	return Call{}, fmt.Errorf("update call %s: too much contention", sid)
}

func (r *RedisStore) Get(ctx context.Context, sid string) (Call, error) {
	return r.load(ctx, r.client, key(sid))
}

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, c getter, k string) (Call, error) {
	b, err := c.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return Call{}, ErrNotFound
	}
	if err != nil {
		return Call{}, err
	}
	var call Call
	if err := json.Unmarshal(b, &call); err != nil {
		return Call{}, fmt.Errorf("decode call record: %w", err)
	}
	return call, nil
}

// parseRedisURL parses addr into UniversalOptions supporting single, cluster
// and sentinel deployments. Without a scheme addr is a host:port string.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{Addrs: strings.Split(u.Host, ",")}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}

	q := u.Query()
	path := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "redis", "rediss":
		db := q.Get("db")
		if path != "" {
			db = path
		}
		if opts.DB, err = parseDB(db); err != nil {
			return nil, err
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = path
		if opts.DB, err = parseDB(q.Get("db")); err != nil {
			return nil, err
		}
		opts.SentinelUsername = q.Get("sentinel_username")
		opts.SentinelPassword = q.Get("sentinel_password")
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", u.Scheme)
	}
	if strings.HasPrefix(u.Scheme, "rediss") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

func parseDB(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	db, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("redis: invalid db: %v", err)
	}
	return db, nil
}
