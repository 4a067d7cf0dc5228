package sales

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var salesBucket = []byte("sales")

// BoltStorage persists sales in a bbolt file, one JSON record per key.
type BoltStorage struct {
	db *bbolt.DB
}

// OpenBoltStorage opens (creating if needed) the database at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open sales db %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(salesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sales bucket: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

func (b *BoltStorage) Close() error {
	return b.db.Close()
}

func boltKey(k Key) []byte {
	id := k.TokenID.Bytes32()
	out := make([]byte, 0, len(k.Asset)+len(id))
	out = append(out, k.Asset.Bytes()...)
	return append(out, id[:]...)
}

func (b *BoltStorage) Set(sale *Sale) error {
	if sale.ID == "" {
		return ErrEmptyID
	}
	v, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("encode sale %s: %w", sale.ID, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(salesBucket).Put(boltKey(sale.Key()), v)
	})
}

// Read returns ErrNotFound when no record exists for key.
func (b *BoltStorage) Read(key Key) (*Sale, error) {
	var sale *Sale
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(salesBucket).Get(boltKey(key))
		if v == nil {
			return ErrNotFound
		}
		sale = &Sale{}
		return json.Unmarshal(v, sale)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (b *BoltStorage) Delete(key Key) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(salesBucket).Delete(boltKey(key))
	})
}

func (b *BoltStorage) GetAll() ([]*Sale, error) {
	sales := make([]*Sale, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(salesBucket).ForEach(func(k, v []byte) error {
			sale := &Sale{}
			if err := json.Unmarshal(v, sale); err != nil {
				return fmt.Errorf("decode sale %x: %w", k, err)
			}
			sales = append(sales, sale)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sales, nil
}
