// Package compute provides execution devices for embedding arithmetic.
//
// A Device scores query vectors against embedding rows. The "cpu" device runs
// serially; the "accel" device fans scoring out over a worker pool. Both
// produce identical numerical results, only the scheduling differs.
package compute
