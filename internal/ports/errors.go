package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while reading, resolving and
// caching documents.
var (
	// ErrUnsupportedExtension indicates that no decoder or loader handles
	// a document's file extension.
	ErrUnsupportedExtension = errors.New("unsupported extension")

	// ErrNotResolvable indicates that no resolution strategy accepts a path.
	ErrNotResolvable = errors.New("path not resolvable")

	// ErrCacheCorrupted indicates that cached data is corrupted or invalid.
	ErrCacheCorrupted = errors.New("cache corrupted")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// LoaderError represents a failure to read or prepare a document before
// it reaches the runtime.
type LoaderError struct {
	// Path is the document that was being loaded.
	Path string

	// Operation is the loading step that failed, such as "read" or "decode".
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for LoaderError.
func (e *LoaderError) Error() string {
	return fmt.Sprintf("loader error: operation=%s, path=%s, err=%v", e.Operation, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoaderError) Unwrap() error { return e.Err }

// NewLoaderError creates a new LoaderError with the given details.
func NewLoaderError(path, operation string, err error) *LoaderError {
	return &LoaderError{
		Path:      path,
		Operation: operation,
		Err:       err,
	}
}

// CacheError represents an error from cache operations.
// It includes the key and operation that failed.
type CacheError struct {
	// Key is the cache key that was involved in the failed operation.
	Key string

	// Operation is the name of the cache operation that failed.
	Operation string

	// Err is the underlying error that caused the cache operation to fail.
	Err error
}

// Error implements the error interface for CacheError.
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError creates a new CacheError with the given details.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
