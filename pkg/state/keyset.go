package state

import "encoding/json"

// KeySet is an ordered, deduplicated set of keys kept most-recent-first and
// bounded by a capacity. The oldest keys are evicted first.
type KeySet struct {
	keys  []string
	index map[string]struct{}
	limit int
}

// NewKeySet creates an empty set holding at most limit keys.
// A limit <= 0 means unbounded.
func NewKeySet(limit int) *KeySet {
	return &KeySet{
		keys:  make([]string, 0),
		index: make(map[string]struct{}),
		limit: limit,
	}
}

// Insert adds key at the most-recent end. An existing key is moved to the
// front without growing the set. Empty keys are ignored.
func (s *KeySet) Insert(key string) {
	if key == "" {
		return
	}
	if _, ok := s.index[key]; ok {
		for i, k := range s.keys {
			if k == key {
				copy(s.keys[1:i+1], s.keys[:i])
				s.keys[0] = key
				return
			}
		}
	}
	s.keys = append(s.keys, "")
	copy(s.keys[1:], s.keys)
	s.keys[0] = key
	s.index[key] = struct{}{}
	s.trim()
}

// Append adds key at the oldest end. Existing and empty keys are ignored.
func (s *KeySet) Append(key string) {
	if key == "" {
		return
	}
	if _, ok := s.index[key]; ok {
		return
	}
	s.keys = append(s.keys, key)
	s.index[key] = struct{}{}
	s.trim()
}

// Contains reports whether key is in the set.
func (s *KeySet) Contains(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[key]
	return ok
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns a copy of the keys, most recent first.
func (s *KeySet) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Limit returns the capacity.
func (s *KeySet) Limit() int {
	return s.limit
}

// SetLimit changes the capacity, evicting the oldest keys if needed.
func (s *KeySet) SetLimit(limit int) {
	s.limit = limit
	s.trim()
}

func (s *KeySet) trim() {
	if s.limit <= 0 || len(s.keys) <= s.limit {
		return
	}
	for _, k := range s.keys[s.limit:] {
		delete(s.index, k)
	}
	s.keys = s.keys[:s.limit]
}

// MarshalJSON encodes the set as a plain array, most recent first.
func (s *KeySet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.keys)
}

// UnmarshalJSON decodes an array, dropping empty and duplicate keys while
// keeping the first (most recent) occurrence.
func (s *KeySet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.keys = make([]string, 0, len(raw))
	s.index = make(map[string]struct{}, len(raw))
	for _, k := range raw {
		if k == "" {
			continue
		}
		if _, ok := s.index[k]; ok {
			continue
		}
		s.index[k] = struct{}{}
		s.keys = append(s.keys, k)
	}
	s.trim()
	return nil
}
