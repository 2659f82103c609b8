package wire

// Status is a decoded device status snapshot mapping protocol keys to
// scalar values. The wire format does not distinguish value types, so
// values are carried as strings and interpreted by callers.
//
// A Status is produced atomically per message and is never partially
// populated.
type Status map[string]string

// Get returns the value for key and whether the key is present.
func (s Status) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Clone returns an independent copy of the snapshot.
func (s Status) Clone() Status {
	if s == nil {
		return nil
	}
	out := make(Status, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether two snapshots contain exactly the same pairs.
func (s Status) Equal(other Status) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
