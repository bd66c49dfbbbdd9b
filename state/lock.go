package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/synapsedaili/youtube-automation/types"
)

// FileLock is an exclusive lock file holding the owner's pid.
// A lock older than StaleAfter is assumed abandoned and taken over.
type FileLock struct {
	Path       string
	StaleAfter time.Duration
}

func (l FileLock) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(l.Path)
				return nil, errors.Join(werr, cerr)
			}
			return func() { os.Remove(l.Path) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if !l.stale() {
			break
		}
		os.Remove(l.Path)
	}
	return nil, fmt.Errorf("%w: lock file %s is held", types.ErrLocked, l.Path)
}

func (l FileLock) stale() bool {
	if l.StaleAfter <= 0 {
		return false
	}
	fi, err := os.Stat(l.Path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	return time.Since(fi.ModTime()) > l.StaleAfter
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock serialises runs across hosts sharing one Redis.
type RedisLock struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

// NewRedisLock connects using a redis:// URL.
func NewRedisLock(ctx context.Context, rawURL, key string, ttl time.Duration) (*RedisLock, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse redis url: %w", types.ErrConfiguration, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLock{Client: client, Key: key, TTL: ttl}, nil
}

func (l *RedisLock) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: redis key %s is held", types.ErrLocked, l.Key)
	}
	return func() {
		releaseScript.Run(context.Background(), l.Client, []string{l.Key}, token)
	}, nil
}

func (l *RedisLock) Close() error {
	return l.Client.Close()
}
