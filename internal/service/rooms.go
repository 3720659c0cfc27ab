package service

import (
	"context"
	"strings"
	"sync"

	"github.com/codecollab/execd/internal/domain"
)

// OpenRooms admits every user to every room. It is the default directory
// until the platform's room service is plugged in behind RoomDirectory.
type OpenRooms struct{}

func (OpenRooms) CheckMember(ctx context.Context, roomID, userID string) error {
	return nil
}

// MemoryRooms is a mutex-guarded RoomDirectory for single-node deployments
// and tests. Production deployments plug the platform's room service in
// behind the same interface.
type MemoryRooms struct {
	mu      sync.RWMutex
	members map[string]map[string]bool // roomID -> userID set
}

func NewMemoryRooms() *MemoryRooms {
	return &MemoryRooms{
		members: make(map[string]map[string]bool),
	}
}

func (r *MemoryRooms) AddMember(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]bool)
	}
	r.members[roomID][userID] = true
}

// SeedMemoryRooms builds a directory from a seed string of the form
// "room1:alice|bob,room2:carol". Malformed entries are skipped.
func SeedMemoryRooms(seed string) *MemoryRooms {
	r := NewMemoryRooms()
	for _, entry := range strings.Split(seed, ",") {
		roomID, users, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || roomID == "" {
			continue
		}
		for _, userID := range strings.Split(users, "|") {
			if userID = strings.TrimSpace(userID); userID != "" {
				r.AddMember(roomID, userID)
			}
		}
	}
	return r
}

func (r *MemoryRooms) CheckMember(ctx context.Context, roomID, userID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.members[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if !room[userID] {
		return domain.ErrNotAMember
	}
	return nil
}
