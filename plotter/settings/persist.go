package settings

import (
	"os"
	"path/filepath"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// Persister stores the settings blob between runs.
type Persister interface {
	// Load returns nil when nothing is stored.
	Load() ([]byte, error)
	Save(blob []byte) error
	Clear() error
}

type NopPersister struct{}

func (NopPersister) Load() ([]byte, error) { return nil, nil }
func (NopPersister) Save([]byte) error     { return nil }
func (NopPersister) Clear() error          { return nil }

// FilePersister keeps the blob in a JSON file.
type FilePersister struct {
	Path string
}

func (f FilePersister) Load() ([]byte, error) {
	blob, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return blob, errors.Wrap(err, "loading settings")
}

func (f FilePersister) Save(blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f FilePersister) Clear() error {
	err := os.Remove(f.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// RedisPersister keeps the blob under one redis key.
type RedisPersister struct {
	Pool *redis.Pool
	Key  string
}

func NewRedisPersister(pool *redis.Pool) *RedisPersister {
	return &RedisPersister{Pool: pool, Key: StorageKey}
}

func (r *RedisPersister) Load() ([]byte, error) {
	conn := r.Pool.Get()
	defer conn.Close()
	blob, err := redis.Bytes(conn.Do("GET", r.Key))
	if err == redis.ErrNil {
		return nil, nil
	}
	return blob, errors.Wrap(err, "loading settings")
}

func (r *RedisPersister) Save(blob []byte) error {
	conn := r.Pool.Get()
	defer conn.Close()
	_, err := conn.Do("SET", r.Key, blob)
	return err
}

func (r *RedisPersister) Clear() error {
	conn := r.Pool.Get()
	defer conn.Close()
	_, err := conn.Do("DEL", r.Key)
	return err
}
