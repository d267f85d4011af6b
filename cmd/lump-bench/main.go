// Command lump-bench spawns a Device over an in-memory Storage engine,
// drives it with a configurable mix of concurrent Put/Get traffic under
// a chosen overload policy, and reports a MetricsSnapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lumpstore/device"
	"github.com/lumpstore/device/backend"
	"github.com/lumpstore/device/internal/logging"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		workers       = flag.Int("workers", 8, "number of concurrent client goroutines")
		ops           = flag.Int("ops", 20000, "total operations to issue across all workers")
		valueSize     = flag.Int("value-size", 4096, "bytes written per Put")
		blockSize     = flag.Int("block-size", 512, "storage block size for aligned allocation")
		policyName    = flag.String("policy", "refuse", "overload policy: refuse, stop, or drop")
		ratio         = flag.Float64("ratio", 1.0, "probability used by refuse/drop policies")
		busyThreshold = flag.Int("busy-threshold", -1, "queue length considered busy (-1 disables overload detection)")
		keepBusy      = flag.Duration("keep-busy", 0, "how long the queue must stay busy before reacting")
		readRatio     = flag.Float64("read-ratio", 0.5, "fraction of operations that are Get rather than Put")
		verbose       = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logrus.DebugLevel
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	policy, err := parsePolicy(*policyName, *ratio)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lump-bench:", err)
		os.Exit(1)
	}

	builder := device.NewDeviceBuilder().
		WithLogger(logger).
		WithLongQueuePolicy(policy).
		WithBusyThreshold(*busyThreshold).
		WithMaxKeepBusyDuration(*keepBusy)

	d := builder.Spawn(func() (device.Storage, error) {
		return backend.NewMemStorage(*blockSize), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("lump-bench: received shutdown signal")
		cancel()
	}()

	h := d.Handle()
	if _, err := h.WaitForRunning().Wait(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "lump-bench: device never became ready:", err)
		os.Exit(1)
	}

	start := time.Now()
	runLoad(ctx, d, *workers, *ops, *valueSize, *readRatio)
	elapsed := time.Since(start)

	if _, err := d.Stop(device.Within(5 * time.Second)).Wait(context.Background()); err != nil {
		logger.WithField("error", err.Error()).Warn("lump-bench: device reported an error on stop")
	}

	printReport(d.Metrics().Snapshot(), elapsed)
}

func runLoad(ctx context.Context, d *device.Device, workers, totalOps, valueSize int, readRatio float64) {
	var wg sync.WaitGroup
	opsPerWorker := totalOps / workers
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			h := d.Handle()
			rng := rand.New(rand.NewPCG(uint64(workerID), uint64(workerID)*2+1))
			payload := make([]byte, valueSize)
			for i := 0; i < opsPerWorker; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				id := device.LumpIdFromUint64(uint64(rng.IntN(opsPerWorker) + 1))
				if rng.Float64() < readRatio {
					_, _ = h.Get(id).Get()
					continue
				}
				data, err := h.AllocateLumpData(uint64(valueSize))
				if err != nil {
					continue
				}
				copy(data.Bytes(), payload)
				_, _ = h.Put(id, data).Get()
			}
		}(w)
	}
	wg.Wait()
}

func parsePolicy(name string, ratio float64) (device.LongQueuePolicy, error) {
	switch name {
	case "refuse":
		return device.RefuseNewRequests(ratio), nil
	case "stop":
		return device.StopPolicy(), nil
	case "drop":
		return device.Drop(ratio), nil
	default:
		return device.LongQueuePolicy{}, fmt.Errorf("unknown policy %q (want refuse, stop, or drop)", name)
	}
}

func printReport(s device.MetricsSnapshot, elapsed time.Duration) {
	fmt.Printf("lump-bench: %s elapsed\n", elapsed)
	fmt.Printf("  puts=%d gets=%d heads=%d deletes=%d\n", s.PutOps, s.GetOps, s.HeadOps, s.DeleteOps)
	fmt.Printf("  bytes written=%d read=%d\n", s.BytesWritten, s.BytesRead)
	fmt.Printf("  refused=%d dropped=%d storage_errors=%d\n", s.Refused, s.Dropped, s.StorageErrors)
	fmt.Printf("  avg queue depth=%.2f max queue depth=%d\n", s.AvgQueueDepth, s.MaxQueueDepth)
	fmt.Printf("  latency avg=%dns p50=%dns p99=%dns p999=%dns\n", s.AvgLatencyNs, s.LatencyP50Ns, s.LatencyP99Ns, s.LatencyP999Ns)
	fmt.Printf("  iops=%.1f error_rate=%.3f%%\n", s.IOPS, s.ErrorRate)
}
