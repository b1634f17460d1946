// Package registry implements the Name Node's two mutex-protected
// in-memory registries: Storage Nodes and client sessions. Both follow
// the same register/get/list/count-under-sync.RWMutex shape; the file
// registry and ACL (a distinct concern, keyed by logical path rather
// than by node/session identity) live in internal/namenode instead.
package registry

import (
	"fmt"
	"sync"
	"time"
)

// SNInfo is one Storage Node's registration record.
type SNInfo struct {
	ID         int
	Address    string
	ClientPort int
	NNPort     int
	SSPort     int // dedicated SS-to-SS copy listener, see spec.md Design Notes
	FileCount  int

	LastHeartbeat time.Time
	Alive         bool
}

// SNRegistry tracks every Storage Node that has ever registered, live or
// dead. Entries are never removed; a dead SN simply stops being selected
// for create and starts failing read/write/delete lookups with
// SN_UNAVAILABLE (spec.md §4.1 state machine).
type SNRegistry struct {
	mu      sync.RWMutex
	byID    map[int]*SNInfo
	cursor  int // round-robin cursor over live SNs, advanced per successful create
	maxSize int
}

// NewSNRegistry creates an empty registry. maxSize of 0 means unbounded.
func NewSNRegistry(maxSize int) *SNRegistry {
	return &SNRegistry{byID: make(map[int]*SNInfo), maxSize: maxSize}
}

// Register admits or re-registers an SN. Re-registration by an id already
// known to the registry is idempotent: it refreshes the address/ports and
// marks the SN alive again, matching spec.md's "DEAD → fresh register →
// REGISTERED" transition.
func (r *SNRegistry) Register(id int, address string, clientPort, nnPort, ssPort int) (*SNInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, exists := r.byID[id]; exists {
		info.Address = address
		info.ClientPort = clientPort
		info.NNPort = nnPort
		info.SSPort = ssPort
		info.LastHeartbeat = time.Now()
		info.Alive = true
		return info, nil
	}

	if r.maxSize > 0 && len(r.byID) >= r.maxSize {
		return nil, fmt.Errorf("storage node registry full (max %d)", r.maxSize)
	}

	info := &SNInfo{
		ID:            id,
		Address:       address,
		ClientPort:    clientPort,
		NNPort:        nnPort,
		SSPort:        ssPort,
		LastHeartbeat: time.Now(),
		Alive:         true,
	}
	r.byID[id] = info
	return info, nil
}

// Get returns the SN record for id, or ok=false if unknown.
func (r *SNRegistry) Get(id int) (*SNInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	cp := *info
	return &cp, true
}

// Heartbeat refreshes the last-heartbeat time for id and marks it alive.
// Returns false if id is unknown.
func (r *SNRegistry) Heartbeat(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byID[id]
	if !ok {
		return false
	}
	info.LastHeartbeat = time.Now()
	info.Alive = true
	return true
}

// SweepDead marks every SN whose last heartbeat is older than tDead as
// dead, returning the ids that transitioned REGISTERED → DEAD this sweep.
func (r *SNRegistry) SweepDead(tDead time.Duration) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newlyDead []int
	now := time.Now()
	for id, info := range r.byID {
		if info.Alive && now.Sub(info.LastHeartbeat) > tDead {
			info.Alive = false
			newlyDead = append(newlyDead, id)
		}
	}
	return newlyDead
}

// SetFileCount updates the cached file count reported by id's
// registration payload.
func (r *SNRegistry) SetFileCount(id, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byID[id]; ok {
		info.FileCount = count
	}
}

// List returns a snapshot of every registered SN, in ascending id order.
func (r *SNRegistry) List() []*SNInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*SNInfo, 0, len(r.byID))
	for _, info := range r.byID {
		cp := *info
		out = append(out, &cp)
	}
	sortSNInfos(out)
	return out
}

// Count returns the number of registered SNs (live or dead).
func (r *SNRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// NextForCreate selects an SN for a new file using a round-robin cursor
// over live SNs, advanced only on successful selection (spec.md §9 Design
// Notes: replacing the reference's skew-prone `file_count %% ss_count`).
// Ties are broken by the cursor's natural ascending-id walk. Returns
// ok=false if no SN is alive.
func (r *SNRegistry) NextForCreate() (*SNInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := make([]*SNInfo, 0, len(r.byID))
	for _, info := range r.byID {
		if info.Alive {
			live = append(live, info)
		}
	}
	if len(live) == 0 {
		return nil, false
	}
	sortSNInfos(live)

	r.cursor = r.cursor % len(live)
	chosen := live[r.cursor]
	r.cursor++

	cp := *chosen
	return &cp, true
}

func sortSNInfos(infos []*SNInfo) {
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].ID < infos[j-1].ID; j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
}

// ClientInfo is one open client control session.
type ClientInfo struct {
	Holder    string // opaque session token, see spec.md §9 Design Notes
	Username  string
	PeerAddr  string
	StartTime time.Time
}

// ClientRegistry tracks open client control sessions.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*ClientInfo
	maxSize int
}

// NewClientRegistry creates an empty registry. maxSize of 0 means
// unbounded.
func NewClientRegistry(maxSize int) *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*ClientInfo), maxSize: maxSize}
}

// Register admits a new session under holder, returning CAPACITY-shaped
// error if the registry is full.
func (r *ClientRegistry) Register(holder, username, peerAddr string) (*ClientInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSize > 0 && len(r.clients) >= r.maxSize {
		return nil, fmt.Errorf("client registry full (max %d)", r.maxSize)
	}

	info := &ClientInfo{Holder: holder, Username: username, PeerAddr: peerAddr, StartTime: time.Now()}
	r.clients[holder] = info
	return info, nil
}

// Get returns the session for holder, or ok=false if not present.
func (r *ClientRegistry) Get(holder string) (*ClientInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.clients[holder]
	if !ok {
		return nil, false
	}
	cp := *info
	return &cp, true
}

// Remove drops a session, for use on disconnect. Returns false if holder
// was not registered.
func (r *ClientRegistry) Remove(holder string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[holder]; !ok {
		return false
	}
	delete(r.clients, holder)
	return true
}

// List returns a snapshot of every open session.
func (r *ClientRegistry) List() []*ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ClientInfo, 0, len(r.clients))
	for _, info := range r.clients {
		cp := *info
		out = append(out, &cp)
	}
	return out
}

// Count returns the number of open sessions.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
