package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the domain types. IDs and counts are varint encoded,
// embedding values are fixed-width little-endian float32, timestamps are
// varint UnixNano (restored as UTC).
var (
	IDMUS          = idSer{}
	InteractionMUS = interactionSer{}
	ItemMUS        = itemSer{}
	SnapshotMUS    = snapshotSer{}

	float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)
	stringSliceMUS  = ord.NewSliceSer[string](ord.String)
	tableMUS        = ord.NewSliceSer[[]float32](float32SliceMUS)
)

var (
	_ mus.Serializer[ID]          = IDMUS
	_ mus.Serializer[Interaction] = InteractionMUS
	_ mus.Serializer[Item]        = ItemMUS
	_ mus.Serializer[Snapshot]    = SnapshotMUS
)

type idSer struct{}

func (idSer) Marshal(id ID, bs []byte) int {
	return varint.Int64.Marshal(int64(id), bs)
}

func (idSer) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	return ID(v), n, err
}

func (idSer) Size(id ID) int {
	return varint.Int64.Size(int64(id))
}

func (idSer) Skip(bs []byte) (int, error) {
	return varint.Int64.Skip(bs)
}

// timeSer serializes a time.Time as varint UnixNano. Zero times must be
// normalized before persisting; repositories stamp them on insert.
type timeSer struct{}

func (timeSer) Marshal(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixNano(), bs)
}

func (timeSer) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.Unix(0, v).UTC(), n, nil
}

func (timeSer) Size(t time.Time) int {
	return varint.Int64.Size(t.UnixNano())
}

func (timeSer) Skip(bs []byte) (int, error) {
	return varint.Int64.Skip(bs)
}

var timeMUS = timeSer{}

type interactionSer struct{}

func (interactionSer) Marshal(in Interaction, bs []byte) (n int) {
	n = IDMUS.Marshal(in.Id, bs)
	n += IDMUS.Marshal(in.User, bs[n:])
	n += IDMUS.Marshal(in.Item, bs[n:])
	n += raw.Float32.Marshal(in.Rating, bs[n:])
	n += raw.Float32.Marshal(in.Preference, bs[n:])
	n += timeMUS.Marshal(in.Timestamp, bs[n:])
	n += timeMUS.Marshal(in.InsertedAt, bs[n:])
	return n
}

func (interactionSer) Unmarshal(bs []byte) (in Interaction, n int, err error) {
	var k int
	if in.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if in.User, k, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return in, n + k, err
	}
	n += k
	if in.Item, k, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return in, n + k, err
	}
	n += k
	if in.Rating, k, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
		return in, n + k, err
	}
	n += k
	if in.Preference, k, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
		return in, n + k, err
	}
	n += k
	if in.Timestamp, k, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return in, n + k, err
	}
	n += k
	if in.InsertedAt, k, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return in, n + k, err
	}
	return in, n + k, nil
}

func (interactionSer) Size(in Interaction) int {
	return IDMUS.Size(in.Id) +
		IDMUS.Size(in.User) +
		IDMUS.Size(in.Item) +
		raw.Float32.Size(in.Rating) +
		raw.Float32.Size(in.Preference) +
		timeMUS.Size(in.Timestamp) +
		timeMUS.Size(in.InsertedAt)
}

func (interactionSer) Skip(bs []byte) (n int, err error) {
	skippers := []func([]byte) (int, error){
		IDMUS.Skip, IDMUS.Skip, IDMUS.Skip,
		raw.Float32.Skip, raw.Float32.Skip,
		timeMUS.Skip, timeMUS.Skip,
	}
	for _, skip := range skippers {
		k, err := skip(bs[n:])
		if err != nil {
			return n + k, err
		}
		n += k
	}
	return n, nil
}

type itemSer struct{}

func (itemSer) Marshal(item Item, bs []byte) (n int) {
	n = IDMUS.Marshal(item.Id, bs)
	n += ord.String.Marshal(item.Title, bs[n:])
	n += stringSliceMUS.Marshal(item.Tags, bs[n:])
	n += timeMUS.Marshal(item.InsertedAt, bs[n:])
	n += timeMUS.Marshal(item.UpdatedAt, bs[n:])
	return n
}

func (itemSer) Unmarshal(bs []byte) (item Item, n int, err error) {
	var k int
	if item.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if item.Title, k, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return item, n + k, err
	}
	n += k
	if item.Tags, k, err = stringSliceMUS.Unmarshal(bs[n:]); err != nil {
		return item, n + k, err
	}
	n += k
	if item.InsertedAt, k, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return item, n + k, err
	}
	n += k
	if item.UpdatedAt, k, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return item, n + k, err
	}
	return item, n + k, nil
}

func (itemSer) Size(item Item) int {
	return IDMUS.Size(item.Id) +
		ord.String.Size(item.Title) +
		stringSliceMUS.Size(item.Tags) +
		timeMUS.Size(item.InsertedAt) +
		timeMUS.Size(item.UpdatedAt)
}

func (itemSer) Skip(bs []byte) (n int, err error) {
	skippers := []func([]byte) (int, error){
		IDMUS.Skip, ord.String.Skip, stringSliceMUS.Skip,
		timeMUS.Skip, timeMUS.Skip,
	}
	for _, skip := range skippers {
		k, err := skip(bs[n:])
		if err != nil {
			return n + k, err
		}
		n += k
	}
	return n, nil
}

type snapshotSer struct{}

func (snapshotSer) Marshal(s Snapshot, bs []byte) (n int) {
	n = IDMUS.Marshal(s.Id, bs)
	n += varint.Int.Marshal(s.Dim, bs[n:])
	n += tableMUS.Marshal(s.Users, bs[n:])
	n += tableMUS.Marshal(s.Items, bs[n:])
	n += timeMUS.Marshal(s.CreatedAt, bs[n:])
	return n
}

func (snapshotSer) Unmarshal(bs []byte) (s Snapshot, n int, err error) {
	var k int
	if s.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if s.Dim, k, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return s, n + k, err
	}
	n += k
	if s.Users, k, err = tableMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + k, err
	}
	n += k
	if s.Items, k, err = tableMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + k, err
	}
	n += k
	if s.CreatedAt, k, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return s, n + k, err
	}
	return s, n + k, nil
}

func (snapshotSer) Size(s Snapshot) int {
	return IDMUS.Size(s.Id) +
		varint.Int.Size(s.Dim) +
		tableMUS.Size(s.Users) +
		tableMUS.Size(s.Items) +
		timeMUS.Size(s.CreatedAt)
}

func (snapshotSer) Skip(bs []byte) (n int, err error) {
	skippers := []func([]byte) (int, error){
		IDMUS.Skip, varint.Int.Skip, tableMUS.Skip, tableMUS.Skip, timeMUS.Skip,
	}
	for _, skip := range skippers {
		k, err := skip(bs[n:])
		if err != nil {
			return n + k, err
		}
		n += k
	}
	return n, nil
}
