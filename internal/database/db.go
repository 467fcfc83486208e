// Package database is the in-memory storage of the development server.
package database

import (
	"sync"

	"golang.org/x/crypto/bcrypt"

	"canteen/internal/model"
)

// UserRecord is a user together with its password hash, which never leaves
// the server.
type UserRecord struct {
	model.User
	PasswordHash []byte
}

// Tables holds every row of the store. It is only reachable inside View or
// Update, so callers never need their own locking.
type Tables struct {
	Users     map[int64]*UserRecord
	Canteens  map[int64]*model.Canteen
	MenuItems map[int64]*model.MenuItem
	Orders    map[int64]*model.Order
	Hostels   map[int64]*model.Hostel
	MessMenus map[int64]*model.MessMenu

	seq map[string]int64
}

// NextID allocates the next id of table, starting at 1.
func (t *Tables) NextID(table string) int64 {
	t.seq[table]++
	return t.seq[table]
}

type DB struct {
	mu     sync.RWMutex
	tables *Tables

	// HashCost is the bcrypt cost for new password hashes.
	HashCost int
}

func NewDB() *DB {
	return &DB{
		tables: &Tables{
			Users:     make(map[int64]*UserRecord),
			Canteens:  make(map[int64]*model.Canteen),
			MenuItems: make(map[int64]*model.MenuItem),
			Orders:    make(map[int64]*model.Order),
			Hostels:   make(map[int64]*model.Hostel),
			MessMenus: make(map[int64]*model.MessMenu),
			seq:       make(map[string]int64),
		},
		HashCost: bcrypt.DefaultCost,
	}
}

// View runs fn with shared access to the tables.
func (db *DB) View(fn func(t *Tables) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.tables)
}

// Update runs fn with exclusive access to the tables. There is no rollback:
// fn must check everything before it writes.
func (db *DB) Update(fn func(t *Tables) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.tables)
}

func (db *DB) HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), db.HashCost)
}
