package idmap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Subordinate ID space used for unprivileged containers.
const (
	// BaseHostID is where the shifted range starts on the host side.
	BaseHostID = 100000
	// IDSpaceSize is the number of IDs mapped into a container.
	IDSpaceSize = 65536
)

// Kind discriminates user from group mappings.
type Kind string

const (
	KindUser  Kind = "u"
	KindGroup Kind = "g"
)

// Valid reports whether the kind is one of "u" or "g".
func (k Kind) Valid() bool {
	return k == KindUser || k == KindGroup
}

type InvalidKindError struct {
	Kind Kind
}

func (e InvalidKindError) Error() string {
	return fmt.Sprintf("idmap: kind must be %q or %q, got %q", KindUser, KindGroup, e.Kind)
}

type IDOutOfRangeError struct {
	ID int
}

func (e IDOutOfRangeError) Error() string {
	return fmt.Sprintf("idmap: id %d outside [0, %d)", e.ID, IDSpaceSize)
}

// Mapping is one lxc.idmap entry: a contiguous range of container IDs
// mapped onto a contiguous range of host IDs.
type Mapping struct {
	Kind           Kind `json:"kind"`
	ContainerStart int  `json:"container_start"`
	HostStart      int  `json:"host_start"`
	Size           int  `json:"range_size"`
}

// ConfigLine renders the mapping as a container config line.
func (m Mapping) ConfigLine() string {
	return fmt.Sprintf("lxc.idmap: %s %d %d %d", m.Kind, m.ContainerStart, m.HostStart, m.Size)
}

// Contains reports whether the container-side range covers id.
func (m Mapping) Contains(id int) bool {
	return id >= m.ContainerStart && id < m.ContainerStart+m.Size
}

// ParseIDList parses a comma-separated ID string into a sorted, unique
// list. "0", empty, and whitespace-only strings mean "no mapping
// requested" and yield nil.
func ParseIDList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("idmap: invalid id %q: %w", part, err)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Allocate computes the complete idmap covering container IDs
// [0, IDSpaceSize) for one kind. Each requested ID becomes a 1:1
// passthrough singleton; everything between is covered by shifted
// blocks whose host offsets start at BaseHostID and grow by exactly
// the size of each block consumed.
//
// An empty ID set yields nil: no mapping was requested, and callers
// must not touch any store for it.
func Allocate(ids []int, kind Kind) ([]Mapping, error) {
	if !kind.Valid() {
		return nil, InvalidKindError{Kind: kind}
	}

	unique := dedupeSorted(ids)
	if len(unique) == 0 {
		return nil, nil
	}
	for _, id := range unique {
		if id < 0 || id >= IDSpaceSize {
			return nil, IDOutOfRangeError{ID: id}
		}
	}

	var mappings []Mapping
	hostOffset := BaseHostID
	next := 0

	for _, passthrough := range unique {
		if next < passthrough {
			size := passthrough - next
			mappings = append(mappings, Mapping{
				Kind:           kind,
				ContainerStart: next,
				HostStart:      hostOffset,
				Size:           size,
			})
			hostOffset += size
		}
		mappings = append(mappings, Mapping{
			Kind:           kind,
			ContainerStart: passthrough,
			HostStart:      passthrough,
			Size:           1,
		})
		next = passthrough + 1
	}

	if next < IDSpaceSize {
		mappings = append(mappings, Mapping{
			Kind:           kind,
			ContainerStart: next,
			HostStart:      hostOffset,
			Size:           IDSpaceSize - next,
		})
	}

	return mappings, nil
}

// SubIDEntries computes the /etc/subuid or /etc/subgid lines needed for
// the given passthrough IDs: the standard shifted range plus one
// single-ID grant per requested ID. Empty input yields nil.
func SubIDEntries(ids []int, owner string) []string {
	unique := dedupeSorted(ids)
	if len(unique) == 0 {
		return nil
	}

	entries := []string{fmt.Sprintf("%s:%d:%d", owner, BaseHostID, IDSpaceSize)}
	for _, id := range unique {
		entries = append(entries, fmt.Sprintf("%s:%d:1", owner, id))
	}
	return entries
}

// ConfigLines renders mappings as container config lines.
func ConfigLines(mappings []Mapping) []string {
	lines := make([]string, 0, len(mappings))
	for _, m := range mappings {
		lines = append(lines, m.ConfigLine())
	}
	return lines
}

func dedupeSorted(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(ids))
	unique := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Ints(unique)
	return unique
}
