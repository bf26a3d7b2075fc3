package relay

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
)

// ErrUnknownGroup is returned by directories for groups they cannot resolve.
var ErrUnknownGroup = errors.New("unknown group")

// Draft is a message that has not been assigned an id yet.
type Draft struct {
	Ref               string // idempotency key; a retried draft keeps its ref
	GroupID           string
	CollectionAddress string
	Sender            string
	Content           string
	Kind              models.Kind
	Timestamp         int64
	IsBot             bool
}

// Message builds the stored message for id.
func (d Draft) Message(id int64) models.Message {
	return models.Message{
		ID:                id,
		GroupID:           d.GroupID,
		CollectionAddress: d.CollectionAddress,
		Sender:            d.Sender,
		Content:           d.Content,
		Kind:              d.Kind,
		Timestamp:         d.Timestamp,
		IsBot:             d.IsBot,
		Ref:               d.Ref,
	}
}

// Store is an append-only, per-group ordered message log.
//
// Append must assign the next id strictly greater than every id already in
// the group, atomically. Appending a draft whose Ref is already stored must
// return the stored message instead of a duplicate.
type Store interface {
	Append(ctx context.Context, d Draft) (models.Message, error)
	// ReadSince returns the group's messages with id > afterID in ascending order.
	ReadSince(ctx context.Context, groupID string, afterID int64) ([]models.Message, error)
	Ping(ctx context.Context) error
}

// Directory resolves the collection a group belongs to.
type Directory interface {
	CollectionForGroup(ctx context.Context, groupID string) (string, error)
}

// DefaultGroups resolves only default groups, whose id is the collection address.
type DefaultGroups struct{}

func (DefaultGroups) CollectionForGroup(ctx context.Context, groupID string) (string, error) {
	if models.IsAddress(groupID) {
		return models.NormalizeAddress(groupID), nil
	}
	return "", ErrUnknownGroup
}

// MemoryStore is the in-process Store used in degraded mode.
type MemoryStore struct {
	mu     sync.Mutex
	groups map[string]*memoryGroup
}

type memoryGroup struct {
	mu       sync.RWMutex
	messages []models.Message
	refs     map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[string]*memoryGroup)}
}

func (s *MemoryStore) group(groupID string) *memoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		g = &memoryGroup{refs: make(map[string]int)}
		s.groups[groupID] = g
	}
	return g
}

// Append stores d with the next id of its group.
func (s *MemoryStore) Append(ctx context.Context, d Draft) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	g := s.group(d.GroupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	if d.Ref != "" {
		if i, ok := g.refs[d.Ref]; ok {
			return g.messages[i], nil
		}
	}

	var next int64 = 1
	if n := len(g.messages); n > 0 {
		next = g.messages[n-1].ID + 1
	}
	msg := d.Message(next)
	g.messages = append(g.messages, msg)
	if d.Ref != "" {
		g.refs[d.Ref] = len(g.messages) - 1
	}
	return msg, nil
}

// ReadSince returns a copy of the messages after afterID.
func (s *MemoryStore) ReadSince(ctx context.Context, groupID string, afterID int64) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := s.group(groupID)
	g.mu.RLock()
	defer g.mu.RUnlock()

	i := sort.Search(len(g.messages), func(i int) bool { return g.messages[i].ID > afterID })
	out := make([]models.Message, len(g.messages)-i)
	copy(out, g.messages[i:])
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
