package core

// MergeStatuses returns the concatenation of existing and incoming with duplicates
// removed, keeping the first occurrence of each label. Neither input is modified.
// Label sets are tens of entries at most, so a linear scan per element is fine.
func MergeStatuses[T comparable](existing, incoming []T) []T {
	out := make([]T, 0, len(existing)+len(incoming))
	for _, group := range [][]T{existing, incoming} {
		for _, v := range group {
			if !containsStatus(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}

// IsOnly reports whether set holds exactly one distinct label and it equals v.
func IsOnly[T comparable](set []T, v T) bool {
	return len(set) == 1 && set[0] == v
}

func containsStatus[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
