package model

import "sort"

// TargetDrive identifies a drive on the identity host.
type TargetDrive struct {
	Alias string `json:"alias" yaml:"alias"`
	Type  string `json:"type" yaml:"type"`
}

// String returns the drive in alias/type form.
func (d TargetDrive) String() string {
	return d.Alias + "/" + d.Type
}

// NormalizeDrives returns the drives sorted with duplicates removed.
// The input slice is not modified.
func NormalizeDrives(drives []TargetDrive) []TargetDrive {
	if len(drives) == 0 {
		return nil
	}

	seen := make(map[TargetDrive]struct{}, len(drives))
	out := make([]TargetDrive, 0, len(drives))
	for _, d := range drives {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Alias != out[j].Alias {
			return out[i].Alias < out[j].Alias
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// SameDrives reports whether a and b contain the same set of drives.
func SameDrives(a, b []TargetDrive) bool {
	na := NormalizeDrives(a)
	nb := NormalizeDrives(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}
