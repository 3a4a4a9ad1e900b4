package common

import (
	"strings"
)

func ContainsStringSlice(strs []string, search string) bool {
	for _, v := range strs {
		if v == search {
			return true
		}
	}

	return false
}

func ContainsStringSliceFold(strs []string, search string) bool {
	for _, v := range strs {
		if strings.EqualFold(v, search) {
			return true
		}
	}

	return false
}

func ContainsInt64Slice(slice []int64, search int64) bool {
	for _, v := range slice {
		if v == search {
			return true
		}
	}

	return false
}

// ContainsInt64SliceOneOf returns true if slice contains one of search
func ContainsInt64SliceOneOf(slice []int64, search []int64) bool {
	for _, v := range search {
		if ContainsInt64Slice(slice, v) {
			return true
		}
	}

	return false
}

// MergeInt64Slices merges the slices, skipping duplicates, order of first
// occurrence preserved.
func MergeInt64Slices(slices ...[]int64) []int64 {
	out := make([]int64, 0)
	for _, slice := range slices {
		for _, v := range slice {
			if !ContainsInt64Slice(out, v) {
				out = append(out, v)
			}
		}
	}

	return out
}
