package poller

// SeenSet is a fixed-capacity deduplication window over content ids.
// When full, the oldest id is evicted first so an id can only re-enter
// moderation after a full window of newer content has passed.
// Not safe for concurrent use; each poller owns its set.
type SeenSet struct {
	capacity int
	ids      map[string]struct{}
	ring     []string
	head     int
}

func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &SeenSet{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
		ring:     make([]string, 0, capacity),
	}
}

// Seen reports whether id is inside the current window and records it if
// not. The first call for an id returns false, later calls true until the
// id is evicted.
func (s *SeenSet) Seen(id string) bool {
	if _, ok := s.ids[id]; ok {
		return true
	}
	if len(s.ring) < s.capacity {
		s.ring = append(s.ring, id)
	} else {
		delete(s.ids, s.ring[s.head])
		s.ring[s.head] = id
		s.head = (s.head + 1) % s.capacity
	}
	s.ids[id] = struct{}{}
	return false
}

func (s *SeenSet) Len() int {
	return len(s.ids)
}
