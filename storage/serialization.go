// Copyright 2026 Zheng Tzer
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/go-crypt/x/blake2b"
	"github.com/mus-format/mus-go/varint"

	"github.com/ZhengTzer/cf-step/core"
)

// snapshotFormatVersion identifies the snapshot wire layout:
// version varint, MUS-encoded snapshot body, BLAKE2b-64 checksum of the body.
const snapshotFormatVersion uint64 = 1

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalInteraction serializes an Interaction to bytes.
func MarshalInteraction(interaction *core.Interaction) []byte {
	buf := make([]byte, core.InteractionMUS.Size(*interaction))
	core.InteractionMUS.Marshal(*interaction, buf)
	return buf
}

// UnmarshalInteraction deserializes an Interaction from bytes.
func UnmarshalInteraction(data []byte) (*core.Interaction, error) {
	interaction, _, err := core.InteractionMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &interaction, nil
}

// MarshalItem serializes an Item to bytes.
func MarshalItem(item *core.Item) []byte {
	buf := make([]byte, core.ItemMUS.Size(*item))
	core.ItemMUS.Marshal(*item, buf)
	return buf
}

// UnmarshalItem deserializes an Item from bytes.
func UnmarshalItem(data []byte) (*core.Item, error) {
	item, _, err := core.ItemMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// MarshalSnapshot serializes a Snapshot to bytes, framed with the format
// version and a trailing BLAKE2b-64 checksum of the body. The checksum is
// what lets a load distinguish corrupted parameters from shape mismatches.
func MarshalSnapshot(snapshot *core.Snapshot) []byte {
	body := make([]byte, core.SnapshotMUS.Size(*snapshot))
	core.SnapshotMUS.Marshal(*snapshot, body)

	verSize := varint.Uint64.Size(snapshotFormatVersion)
	out := make([]byte, verSize+len(body)+8)
	n := varint.Uint64.Marshal(snapshotFormatVersion, out)
	copy(out[n:], body)
	binary.BigEndian.PutUint64(out[n+len(body):], bodyChecksum(body))
	return out
}

// UnmarshalSnapshot deserializes a Snapshot from bytes, verifying the format
// version and the body checksum. Corrupted bytes surface ErrChecksumMismatch
// or ErrSerializationFailed; short input surfaces ErrTruncatedData.
func UnmarshalSnapshot(data []byte) (*core.Snapshot, error) {
	version, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	if version != snapshotFormatVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot format version %d",
			ErrSerializationFailed, version)
	}

	if len(data) < n+8 {
		return nil, fmt.Errorf("%w: %d bytes after version", ErrTruncatedData, len(data)-n)
	}
	body := data[n : len(data)-8]
	stored := binary.BigEndian.Uint64(data[len(data)-8:])
	if computed := bodyChecksum(body); computed != stored {
		return nil, fmt.Errorf("%w: stored %x, computed %x", ErrChecksumMismatch, stored, computed)
	}

	snapshot, _, err := core.SnapshotMUS.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &snapshot, nil
}

// bodyChecksum computes a BLAKE2b-64 digest of the given bytes.
func bodyChecksum(data []byte) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	return binary.LittleEndian.Uint64(h.Sum(nil))
}
