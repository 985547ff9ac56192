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


package badger

import "github.com/ZhengTzer/cf-step/storage"

// NewMemoryRepositories creates in-memory interaction, item, and snapshot
// repositories for testing.
// Returns interactionRepo, itemRepo, snapshotRepo, backend, and error.
// Caller must close all repos and the backend when done.
func NewMemoryRepositories() (storage.InteractionRepository, storage.ItemRepository, storage.SnapshotRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	interactionRepo, err := NewInteractionRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, err
	}

	itemRepo, err := NewItemRepository(backend)
	if err != nil {
		interactionRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	snapshotRepo, err := NewSnapshotRepository(backend)
	if err != nil {
		itemRepo.Close()
		interactionRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	return interactionRepo, itemRepo, snapshotRepo, backend, nil
}
