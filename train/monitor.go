package train

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// FitMonitor provides hooks to observe a training run. Implementations must
// not mutate anything the engine trains; callbacks never affect numerical
// results.
type FitMonitor interface {
	EpochStarted(epoch, totalEpochs int)
	BatchProcessed(epoch, batch, examples int, meanLoss float32)
	EpochFinished(epoch int, meanLoss float32)
}

// noopMonitor is a no-op implementation of FitMonitor
type noopMonitor struct{}

var _ FitMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) EpochStarted(_, _ int)                  {}
func (n *noopMonitor) BatchProcessed(_, _, _ int, _ float32)  {}
func (n *noopMonitor) EpochFinished(_ int, _ float32)         {}

// ProgressMonitor reports training throughput and running loss to a writer.
type ProgressMonitor struct {
	writer         io.Writer
	reportInterval int
	examples       int
	lastReported   int
	lossSum        float64
	batches        int
	startTime      time.Time
	mu             sync.Mutex
}

var _ FitMonitor = (*ProgressMonitor)(nil)

// NewProgressMonitor creates a progress monitor.
// writer: where to write progress output (typically os.Stderr)
// reportInterval: report progress every N examples
func NewProgressMonitor(writer io.Writer, reportInterval int) *ProgressMonitor {
	if reportInterval <= 0 {
		reportInterval = 1000
	}
	return &ProgressMonitor{
		writer:         writer,
		reportInterval: reportInterval,
	}
}

// EpochStarted resets the counters for a new epoch.
func (p *ProgressMonitor) EpochStarted(epoch, totalEpochs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.examples = 0
	p.lastReported = 0
	p.lossSum = 0
	p.batches = 0

	fmt.Fprintf(p.writer, "Epoch %d/%d\n", epoch, totalEpochs)
}

// BatchProcessed accumulates counters and reports when an interval is
// crossed.
func (p *ProgressMonitor) BatchProcessed(_, _, examples int, meanLoss float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.examples += examples
	p.batches++
	p.lossSum += float64(meanLoss)

	if p.examples-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.examples
	}
}

// EpochFinished prints the final progress line for the epoch.
func (p *ProgressMonitor) EpochFinished(_ int, meanLoss float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.writer, "\r%d examples in %.1fs - loss %.6f\n",
		p.examples, elapsed.Seconds(), meanLoss)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressMonitor) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.examples) / elapsed.Seconds()
	running := p.lossSum / float64(p.batches)

	fmt.Fprintf(p.writer, "\rProgress: %d examples - %.1f examples/s - loss %.6f",
		p.examples, rate, running)
}
