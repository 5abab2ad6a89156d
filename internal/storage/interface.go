package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Metadata describes an archived file.
type Metadata struct {
	ContentType  string            `json:"contentType,omitempty"`
	OriginalName string            `json:"originalName,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	ReceivedAt   time.Time         `json:"receivedAt,omitempty"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// Storage is a content-addressed archive of received files.
// Implementations are the local filesystem and S3-compatible object stores.
type Storage interface {
	Put(ctx context.Context, key string, content []byte, metadata *Metadata) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Archive stores content under key unless the key is already present.
// Keys embed the content checksum, so an existing key holds the same bytes.
func Archive(ctx context.Context, s Storage, key string, content []byte, metadata *Metadata) (bool, error) {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := s.Put(ctx, key, content, metadata); err != nil {
		return false, err
	}
	return true, nil
}

// StorageType represents the type of storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Type      StorageType `mapstructure:"type" validate:"oneof=local s3"`
	BasePath  string      `mapstructure:"base_path"`
	Endpoint  string      `mapstructure:"endpoint"`
	Bucket    string      `mapstructure:"bucket"`
	AccessKey string      `mapstructure:"access_key"`
	SecretKey string      `mapstructure:"secret_key"`
	Region    string      `mapstructure:"region"`
	UseSSL    bool        `mapstructure:"use_ssl"`
}

// New builds the backend described by cfg.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.BasePath)
	case StorageTypeS3:
		return NewMinioStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// ComputeChecksum returns the hex SHA-256 of content.
func ComputeChecksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// PriceListKey is where a received supplier file is archived.
func PriceListKey(providerID int64, checksum string) string {
	return fmt.Sprintf("pricelists/%d/%s", providerID, checksum)
}

// OrderKey is where a received customer order file is archived.
func OrderKey(customerID int64, checksum string) string {
	return fmt.Sprintf("orders/%d/%s", customerID, checksum)
}
