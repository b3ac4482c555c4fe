// Package confstore rewrites the line-oriented stores this deployer
// owns: the per-container config file and the flat subordinate-ID
// grant files. Merges are additive and scoped; unrelated lines pass
// through verbatim.
package confstore

import (
	"sort"
	"strconv"
	"strings"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/idmap"
)

const idmapKey = "lxc.idmap"

// line is one store line, tagged when it is an idmap entry so the
// merge can filter by kind without touching anything else.
type line struct {
	raw     string
	isIDMap bool
	kind    idmap.Kind
}

func parseLine(raw string) line {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, idmapKey) {
		return line{raw: raw}
	}

	// Both "lxc.idmap: u ..." and "lxc.idmap = u ..." occur in the wild.
	rest := strings.TrimSpace(strings.TrimLeft(strings.TrimPrefix(s, idmapKey), ":= \t"))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return line{raw: raw}
	}
	k := idmap.Kind(fields[0])
	if !k.Valid() {
		return line{raw: raw}
	}
	return line{raw: raw, isIDMap: true, kind: k}
}

// MergeKind returns storeText with every idmap line of the given kind
// removed and newLines appended at the end. Lines of the other kind and
// all non-idmap directives are preserved verbatim, in order. The
// operation is scoped to one kind; callers merge each kind with its own
// call.
func MergeKind(storeText string, kind idmap.Kind, newLines []string) (string, error) {
	if !kind.Valid() {
		return "", idmap.InvalidKindError{Kind: kind}
	}

	var kept []string
	for _, raw := range splitLines(storeText) {
		l := parseLine(raw)
		if l.isIDMap && l.kind == kind {
			continue
		}
		kept = append(kept, raw)
	}
	kept = append(kept, newLines...)

	return joinLines(kept), nil
}

// MergeAppendOnly appends each of newLines to storeText unless an
// identical line (modulo surrounding whitespace) is already present.
// Repeat merges with the same input are no-ops.
func MergeAppendOnly(storeText string, newLines []string) string {
	existing := make(map[string]bool)
	lines := splitLines(storeText)
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			existing[s] = true
		}
	}

	for _, l := range newLines {
		s := strings.TrimSpace(l)
		if s == "" || existing[s] {
			continue
		}
		existing[s] = true
		lines = append(lines, l)
	}

	return joinLines(lines)
}

// ParseIDMapLines extracts the (container_start, host_start, size)
// segments of one kind from store lines, sorted by container start.
func ParseIDMapLines(storeText string, kind idmap.Kind) ([]idmap.Mapping, error) {
	if !kind.Valid() {
		return nil, idmap.InvalidKindError{Kind: kind}
	}

	var segments []idmap.Mapping
	for _, raw := range splitLines(storeText) {
		l := parseLine(raw)
		if !l.isIDMap || l.kind != kind {
			continue
		}
		rest := strings.TrimSpace(strings.TrimLeft(strings.TrimPrefix(strings.TrimSpace(raw), idmapKey), ":= \t"))
		fields := strings.Fields(rest)
		if len(fields) < 4 {
			continue
		}
		cStart, err1 := strconv.Atoi(fields[1])
		hStart, err2 := strconv.Atoi(fields[2])
		size, err3 := strconv.Atoi(fields[3])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		segments = append(segments, idmap.Mapping{
			Kind:           kind,
			ContainerStart: cStart,
			HostStart:      hStart,
			Size:           size,
		})
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].ContainerStart < segments[j].ContainerStart
	})
	return segments, nil
}

// splitLines splits on newlines without manufacturing a trailing empty
// line for newline-terminated text.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
