package core

import "time"

// ID is a unique identifier for domain entities.
// User and item IDs are row indices into their embedding tables; interaction
// IDs are assigned by database sequences.
type ID int64

// Interaction represents a single observed feedback event between a user and
// an item. Rating carries the raw strength of the event and feeds confidence
// weighting; Preference is the training target the model is fit to.
type Interaction struct {
	Id         ID
	User       ID
	Item       ID
	Rating     float32
	Preference float32
	Timestamp  time.Time // When the event was originally observed
	InsertedAt time.Time // When the record was inserted into the database
}

// Item holds catalog metadata for an item row. Id must equal the item's row
// in the item embedding table so that catalog text can seed cold-start
// vectors and predictions can be rendered with titles.
type Item struct {
	Id         ID
	Title      string
	Tags       []string
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// HasTag reports whether the item carries the given tag.
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FeatureColumns is the required width of every Batch feature row:
// user id, item id, rating.
const FeatureColumns = 3

// Batch is a dense slice of training examples. Features holds N rows of
// exactly FeatureColumns values each; Preferences holds the N aligned
// training targets.
type Batch struct {
	Features    [][]float32
	Preferences []float32
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Features)
}

// Snapshot is a point-in-time copy of model parameters. Id is assigned by the
// snapshot repository (0 for file snapshots); Users and Items are row-major
// copies of the embedding tables, every row Dim wide.
type Snapshot struct {
	Id        ID
	Dim       int
	Users     [][]float32
	Items     [][]float32
	CreatedAt time.Time
}
