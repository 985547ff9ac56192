// Package stream feeds observed interaction events into a training engine.
//
// The Consumer type manages the online learning workflow for interaction
// events, including:
//   - Validating events and appending them to the interaction log
//   - Applying events to the model one at a time, in publish order
//   - Capturing periodic snapshots of the model state
//
// A single worker applies every update, so the model is never written from
// two goroutines at once. Errors during async training are logged but do not
// fail the publish operation.
package stream
