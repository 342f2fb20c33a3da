package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"addressbook/internal/models"
)

// memoryDB is the shared state behind the in-memory stores. Users and
// addresses share one lock so pointer moves stay atomic.
type memoryDB struct {
	mu        sync.RWMutex
	users     map[primitive.ObjectID]models.User
	emails    map[string]primitive.ObjectID
	addresses map[primitive.ObjectID]models.Address
	now       func() time.Time
}

type MemoryUsers struct{ db *memoryDB }

type MemoryAddresses struct{ db *memoryDB }

// NewMemory returns a user store and an address store backed by the same
// in-process maps.
func NewMemory() (*MemoryUsers, *MemoryAddresses) {
	db := &memoryDB{
		users:     make(map[primitive.ObjectID]models.User),
		emails:    make(map[string]primitive.ObjectID),
		addresses: make(map[primitive.ObjectID]models.Address),
		now:       func() time.Time { return time.Now().UTC() },
	}
	return &MemoryUsers{db: db}, &MemoryAddresses{db: db}
}

func (s *MemoryUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, taken := s.db.emails[key]; taken {
		return nil, models.ErrEmailTaken
	}
	created := *u
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}
	now := s.db.now()
	created.CreatedAt = now
	created.UpdatedAt = now
	s.db.users[created.ID] = created
	s.db.emails[key] = created.ID
	return &created, nil
}

func (s *MemoryUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	id, ok := s.db.emails[strings.ToLower(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := s.db.users[id]
	return &u, nil
}

func (s *MemoryUsers) SetSession(_ context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.Token = token
	u.TokenExpiresAt = &expiresAt
	u.UpdatedAt = s.db.now()
	s.db.users[id] = u
	return nil
}

func (s *MemoryUsers) ClearSession(_ context.Context, id primitive.ObjectID, token string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok || u.Token != token {
		return nil
	}
	u.Token = ""
	u.TokenExpiresAt = nil
	u.UpdatedAt = s.db.now()
	s.db.users[id] = u
	return nil
}

func (s *MemoryAddresses) Create(_ context.Context, owner primitive.ObjectID, fields models.AddressFields) (*models.Address, error) {
	a, err := fields.Build(owner, s.db.now())
	if err != nil {
		return nil, err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	a.ID = primitive.NewObjectID()
	if !s.db.hasAddresses(owner) {
		a.Favorite = true
	}
	if a.Favorite {
		s.db.markCurrent(owner, a.ID)
	}
	s.db.addresses[a.ID] = *a
	return a, nil
}

func (s *MemoryAddresses) FindByID(_ context.Context, id primitive.ObjectID) (*models.Address, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	a, ok := s.db.addresses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (s *MemoryAddresses) FindCurrent(_ context.Context, owner primitive.ObjectID) (*models.Address, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[owner]
	if !ok || u.CurrentAddressID == nil {
		return nil, models.ErrNotFound
	}
	a, ok := s.db.addresses[*u.CurrentAddressID]
	if !ok || a.UserID != owner {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (s *MemoryAddresses) ListByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Address, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	list := make([]models.Address, 0)
	for _, a := range s.db.addresses {
		if a.UserID == owner {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID.Hex() > list[j].ID.Hex()
	})
	return list, nil
}

func (s *MemoryAddresses) Update(_ context.Context, id, owner primitive.ObjectID, patch models.AddressPatch) (*models.Address, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing, ok := s.db.addresses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	merged, err := mergeOwned(&existing, owner, patch, s.db.now())
	if err != nil {
		return nil, err
	}
	if merged.Favorite && !existing.Favorite {
		s.db.markCurrent(owner, id)
	}
	s.db.addresses[id] = *merged
	return merged, nil
}

func (s *MemoryAddresses) Delete(_ context.Context, id, owner primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing, ok := s.db.addresses[id]
	if !ok {
		return models.ErrNotFound
	}
	if existing.UserID != owner {
		return models.ErrForbidden
	}
	delete(s.db.addresses, id)
	if existing.Favorite {
		s.db.promoteLatest(owner)
	}
	return nil
}

func (db *memoryDB) hasAddresses(owner primitive.ObjectID) bool {
	for _, a := range db.addresses {
		if a.UserID == owner {
			return true
		}
	}
	return false
}

// markCurrent clears the favorite flag on the owner's other addresses and
// points the owner at id. Callers hold the write lock.
func (db *memoryDB) markCurrent(owner, id primitive.ObjectID) {
	for aid, a := range db.addresses {
		if a.UserID == owner && aid != id && a.Favorite {
			a.Favorite = false
			db.addresses[aid] = a
		}
	}
	if u, ok := db.users[owner]; ok {
		current := id
		u.CurrentAddressID = &current
		db.users[owner] = u
	}
}

func (db *memoryDB) promoteLatest(owner primitive.ObjectID) {
	var latest *models.Address
	for _, a := range db.addresses {
		if a.UserID != owner {
			continue
		}
		if latest == nil || a.UpdatedAt.After(latest.UpdatedAt) ||
			(a.UpdatedAt.Equal(latest.UpdatedAt) && a.ID.Hex() > latest.ID.Hex()) {
			candidate := a
			latest = &candidate
		}
	}
	if latest == nil {
		if u, ok := db.users[owner]; ok {
			u.CurrentAddressID = nil
			db.users[owner] = u
		}
		return
	}
	latest.Favorite = true
	db.addresses[latest.ID] = *latest
	db.markCurrent(owner, latest.ID)
}
