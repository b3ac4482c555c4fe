package idmap

// ResolveHostID maps a container ID to its host ID using freshly
// computed segments. Segments are searched linearly; the first one
// covering the ID wins. When no segment matches, unprivileged
// containers fall back to the standard shifted offset and privileged
// ones keep the ID unchanged.
//
// Resolution deliberately works on in-memory segments rather than a
// re-read of the persisted config: /etc/pve is a clustered FUSE mount
// and a read immediately after a write may return stale data.
func ResolveHostID(containerID int, segments []Mapping, unprivileged bool) int {
	for _, seg := range segments {
		if seg.Contains(containerID) {
			return seg.HostStart + (containerID - seg.ContainerStart)
		}
	}
	if unprivileged {
		return BaseHostID + containerID
	}
	return containerID
}

// DefaultSegments returns the single whole-space shifted segment that
// an unprivileged container has when no explicit idmap is configured.
func DefaultSegments(kind Kind) []Mapping {
	return []Mapping{{
		Kind:           kind,
		ContainerStart: 0,
		HostStart:      BaseHostID,
		Size:           IDSpaceSize,
	}}
}
