// Package snapshot serializes and restores a *ecs.World to and from a
// single binary stream: entity table metadata followed by one chunk per
// registered, non-empty component type, written and read through each
// type's registered Formatter.
package snapshot

const (
	// magic is the 4-byte stream identifier written at offset 0.
	magic = "ZECS"
	// formatVersion is the stream layout version, independent of any single
	// component type's FormatterVersion.
	formatVersion uint16 = 1
)

// Flag bits for the header's flags byte.
const (
	// FlagIgnoreUnknown tolerates chunks whose stable id isn't registered
	// on the loading process by skipping them (using the chunk's own
	// payload_len to find the next chunk) instead of failing the load.
	FlagIgnoreUnknown uint8 = 1 << 0
)

// endMarker is the stable_id_len written in place of a chunk header to
// signal there are no more component chunks.
const endMarker uint16 = 0
