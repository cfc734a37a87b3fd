package consensus

import (
	"sort"
	"sync"
)

// Validator is a node eligible to be drawn for validation.
type Validator struct {
	NodeID    string
	PublicKey string
}

// ValidatorRegistry is the set of known validators, keyed by node id. It is
// safe for concurrent use.
type ValidatorRegistry struct {
	lock       sync.RWMutex
	validators map[string]Validator
}

// NewValidatorRegistry ...
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{
		validators: make(map[string]Validator),
	}
}

// Register adds or replaces the validator for nodeID.
func (r *ValidatorRegistry) Register(nodeID, publicKey string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.validators[nodeID] = Validator{
		NodeID:    nodeID,
		PublicKey: publicKey,
	}
}

// Unregister removes nodeID. Unknown ids are ignored.
func (r *ValidatorRegistry) Unregister(nodeID string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.validators, nodeID)
}

// Contains ...
func (r *ValidatorRegistry) Contains(nodeID string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, ok := r.validators[nodeID]
	return ok
}

// Get ...
func (r *ValidatorRegistry) Get(nodeID string) (Validator, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	v, ok := r.validators[nodeID]
	return v, ok
}

// Len ...
func (r *ValidatorRegistry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.validators)
}

// IDs returns a copy of the registered ids in no particular order.
func (r *ValidatorRegistry) IDs() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	res := make([]string, 0, len(r.validators))
	for id := range r.validators {
		res = append(res, id)
	}
	return res
}

// Validators returns a copy of the registered validators sorted by id.
func (r *ValidatorRegistry) Validators() []Validator {
	r.lock.RLock()
	res := make([]Validator, 0, len(r.validators))
	for _, v := range r.validators {
		res = append(res, v)
	}
	r.lock.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].NodeID < res[j].NodeID
	})

	return res
}
