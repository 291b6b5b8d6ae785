package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configura o client compartilhado. Um único client (com pool)
// é criado na inicialização e injetado em todos os stores.
type RedisOptions struct {
	// URL tem precedência sobre Addr/Password/DB (ex: redis://:pw@host:6379/0).
	URL      string
	Addr     string
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewRedisClient(o RedisOptions) (*redis.Client, error) {
	var opts *redis.Options
	if u := strings.TrimSpace(o.URL); u != "" {
		parsed, err := redis.ParseURL(u)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		if strings.TrimSpace(o.Addr) == "" {
			return nil, errors.New("redis address is required")
		}
		opts = &redis.Options{
			Addr:     o.Addr,
			Password: o.Password,
			DB:       o.DB,
		}
	}

	if o.PoolSize > 0 {
		opts.PoolSize = o.PoolSize
	}
	if o.MinIdleConns > 0 {
		opts.MinIdleConns = o.MinIdleConns
	}
	if o.DialTimeout > 0 {
		opts.DialTimeout = o.DialTimeout
	}
	if o.ReadTimeout > 0 {
		opts.ReadTimeout = o.ReadTimeout
	}
	if o.WriteTimeout > 0 {
		opts.WriteTimeout = o.WriteTimeout
	}
	return redis.NewClient(opts), nil
}

// unavailable classifica erros de I/O como domain.ErrStoreUnavailable,
// preservando o erro original na cadeia.
func unavailable(op string, key domain.Key, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, domain.ErrStoreUnavailable, err)
}
