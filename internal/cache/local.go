package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

var ErrMiss = errors.New("cache miss")

// Local is an in-process byte cache. Every entry carries its own deadline in
// addition to the cache-wide life window, so nothing outlives the value it
// mirrors.
type Local struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

func NewLocal(lifeWindow time.Duration) (*Local, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.CleanWindow = lifeWindow
	cfg.Verbose = false
	c, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("bigcache: %w", err)
	}
	return &Local{cache: c, now: time.Now}, nil
}

// SetClock replaces the clock used for per-entry deadlines.
func (l *Local) SetClock(now func() time.Time) { l.now = now }

func (l *Local) Set(key string, value []byte, deadline time.Time) error {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf, uint64(deadline.UnixNano()))
	copy(buf[8:], value)
	return l.cache.Set(key, buf)
}

func (l *Local) Get(key string) ([]byte, error) {
	buf, err := l.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	if len(buf) < 8 {
		_ = l.cache.Delete(key)
		return nil, ErrMiss
	}
	deadline := time.Unix(0, int64(binary.BigEndian.Uint64(buf)))
	if !l.now().Before(deadline) {
		_ = l.cache.Delete(key)
		return nil, ErrMiss
	}
	return buf[8:], nil
}

func (l *Local) Delete(key string) {
	_ = l.cache.Delete(key)
}

func (l *Local) Close() error {
	return l.cache.Close()
}
