package model

import "strconv"

// Version is a server version.
type Version struct {
	Desc  string
	Parts []uint8
}

// AtLeast returns whether the version is at least as large
// as the supplied parts.
func (v Version) AtLeast(parts ...uint8) bool {
	for i, p := range parts {
		if i == len(v.Parts) {
			return false
		}
		if v.Parts[i] != p {
			return v.Parts[i] >= p
		}
	}
	return true
}

func (v Version) String() string {
	if v.Desc != "" {
		return v.Desc
	}

	s := ""
	for i, p := range v.Parts {
		if i != 0 {
			s += "."
		}
		s += strconv.Itoa(int(p))
	}
	return s
}
