package badger

import (
	"encoding/binary"

	"github.com/ZhengTzer/cf-step/core"
)

// Key prefixes for different data types
const (
	interactionPrefix = "intrec"
	interactionIDSeq  = "intrecseq"
	itemPrefix        = "itmrec"
	itemTagPrefix     = "itmtag"
	snapshotPrefix    = "snprec"
	snapshotIDSeq     = "snprecseq"
)

// makeBinaryKey generates a key of the form prefix:id with the ID written
// in BigEndian order so lexicographic iteration over keys follows ID order.
func makeBinaryKey(prefix string, id core.ID) []byte {
	prefixBytes := []byte(prefix + ":")
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeInteractionKey generates a key for an interaction log entry.
func makeInteractionKey(id core.ID) []byte {
	return makeBinaryKey(interactionPrefix, id)
}

// makeItemKey generates a key for an item catalog entry.
func makeItemKey(id core.ID) []byte {
	return makeBinaryKey(itemPrefix, id)
}

// makeItemTagKey generates a composite key for the tag index.
// Format: prefix:tag:itemID
func makeItemTagKey(tag string, itemID core.ID) []byte {
	prefixBytes := []byte(itemTagPrefix + ":" + tag + ":")
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(itemID))
	return buf
}

// makePartialItemTagKey generates a partial key for scanning all items
// carrying a tag.
// Format: prefix:tag:
func makePartialItemTagKey(tag string) []byte {
	return []byte(itemTagPrefix + ":" + tag + ":")
}

// makeSnapshotKey generates a key for a model snapshot version.
func makeSnapshotKey(id core.ID) []byte {
	return makeBinaryKey(snapshotPrefix, id)
}
