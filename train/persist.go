package train

import (
	"fmt"
	"os"
	"time"

	"github.com/ZhengTzer/cf-step/core"
	"github.com/ZhengTzer/cf-step/storage"
)

// Snapshot exports a deep copy of the model's parameters.
func (e *Engine) Snapshot() *core.Snapshot {
	users, items := e.model.Users(), e.model.Items()
	return &core.Snapshot{
		Dim:       users.Dim(),
		Users:     users.CopyRows(),
		Items:     items.CopyRows(),
		CreatedAt: time.Now().UTC(),
	}
}

// Restore replaces the model's parameters with the snapshot's. The snapshot
// must match the model's geometry exactly: same dimensionality and same row
// counts for both tables. Any mismatch fails with core.ErrCorruptState and
// leaves the current parameters untouched.
func (e *Engine) Restore(snapshot *core.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", core.ErrCorruptState)
	}

	users, items := e.model.Users(), e.model.Items()
	if snapshot.Dim != users.Dim() {
		return fmt.Errorf("%w: snapshot dimension %d, model %d",
			core.ErrCorruptState, snapshot.Dim, users.Dim())
	}
	if len(snapshot.Users) != users.Len() {
		return fmt.Errorf("%w: snapshot has %d user rows, model %d",
			core.ErrCorruptState, len(snapshot.Users), users.Len())
	}
	if len(snapshot.Items) != items.Len() {
		return fmt.Errorf("%w: snapshot has %d item rows, model %d",
			core.ErrCorruptState, len(snapshot.Items), items.Len())
	}
	// Check every row width up front so the two table swaps below cannot
	// fail and leave a half-restored model.
	for i, row := range snapshot.Users {
		if len(row) != snapshot.Dim {
			return fmt.Errorf("%w: user row %d has %d values, want %d",
				core.ErrCorruptState, i, len(row), snapshot.Dim)
		}
	}
	for i, row := range snapshot.Items {
		if len(row) != snapshot.Dim {
			return fmt.Errorf("%w: item row %d has %d values, want %d",
				core.ErrCorruptState, i, len(row), snapshot.Dim)
		}
	}

	if err := users.SetRows(snapshot.Users); err != nil {
		return fmt.Errorf("%w: %w", core.ErrCorruptState, err)
	}
	if err := items.SetRows(snapshot.Items); err != nil {
		return fmt.Errorf("%w: %w", core.ErrCorruptState, err)
	}
	return nil
}

// Save writes a snapshot of the model's parameters to the given path.
func (e *Engine) Save(path string) error {
	data := storage.MarshalSnapshot(e.Snapshot())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	e.logger.Debug("snapshot saved", "path", path, "bytes", len(data))
	return nil
}

// Load reads a snapshot from the given path and restores it into the model.
// Decode and checksum failures, like geometry mismatches, surface
// core.ErrCorruptState; the model keeps its current parameters on any error.
func (e *Engine) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	snapshot, err := storage.UnmarshalSnapshot(data)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrCorruptState, err)
	}

	if err := e.Restore(snapshot); err != nil {
		return err
	}
	e.logger.Debug("snapshot loaded", "path", path)
	return nil
}
