package sales

import (
	"errors"
	"sync"
)

// ErrEmptyID is returned when trying to store a sale with an empty ID.
var ErrEmptyID = errors.New("empty sale ID")

// Storage is the main interface for our sales storage layer. Implementations
// hold at most one record per Key.
type Storage interface {
	Set(sale *Sale) error
	Read(key Key) (*Sale, error)
	Delete(key Key) error
	GetAll() ([]*Sale, error)
}

// LocalStorage provides an in-memory implementation for storing sales.
type LocalStorage struct {
	mu sync.RWMutex
	m  map[Key]*Sale
}

// NewLocalStorage instantiates a new LocalStorage for sales with an empty map.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m: map[Key]*Sale{},
	}
}

// Set stores a copy of sale under its key.
// Returns ErrEmptyID if the sale has an empty ID.
func (l *LocalStorage) Set(sale *Sale) error {
	if sale.ID == "" {
		return ErrEmptyID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[sale.Key()] = sale.clone()
	return nil
}

// Read retrieves a sale from the local storage by key.
// Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) Read(key Key) (*Sale, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (l *LocalStorage) Delete(key Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, key)
	return nil
}

// GetAll retrieves all sales from the local storage.
func (l *LocalStorage) GetAll() ([]*Sale, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sales := make([]*Sale, 0, len(l.m))
	for _, s := range l.m {
		sales = append(sales, s.clone())
	}
	return sales, nil
}
