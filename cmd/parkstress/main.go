// Command parkstress drives package lot and package sync under concurrent
// load and reports wake-latency percentiles, in the shape of the teacher's
// bench/qbench/run command: flags for load shape, signal handling for a
// clean early stop, sorted-timings percentile reporting.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	psync "github.com/I3ck/parking-lot/sync"
)

var (
	workers  = flag.Int("workers", 64, "count of goroutines contending for one mutex")
	rounds   = flag.Int("rounds", 1<<16, "lock/unlock rounds per worker")
	scenario = flag.String("scenario", "mutex", "scenario to run: mutex, rwmutex, cond")
)

// Int64s sorts wake-latency samples for percentile reporting.
type Int64s []int64

func (is Int64s) Len() int           { return len(is) }
func (is Int64s) Swap(i, j int)      { is[i], is[j] = is[j], is[i] }
func (is Int64s) Less(i, j int) bool { return is[i] < is[j] }

func percentiles(name string, samples []int64) {
	if len(samples) == 0 {
		fmt.Printf("%s: no samples\n", name)
		return
	}
	sort.Sort(Int64s(samples))
	at := func(p float64) time.Duration {
		idx := int(p * float64(len(samples)-1))
		return time.Duration(samples[idx])
	}
	fmt.Printf("%s: min[%v] p50[%v] p90[%v] p99[%v] max[%v] n[%d]\n",
		name, time.Duration(samples[0]), at(0.50), at(0.90), at(0.99),
		time.Duration(samples[len(samples)-1]), len(samples))
}

func runMutex(ctx context.Context) ([]int64, error) {
	var m psync.Mutex
	var counter int64
	samples := make([][]int64, *workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		w := w
		samples[w] = make([]int64, 0, *rounds)
		g.Go(func() error {
			for i := 0; i < *rounds; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				start := time.Now()
				m.Lock()
				atomic.AddInt64(&counter, 1)
				m.Unlock()
				samples[w] = append(samples[w], int64(time.Since(start)))
			}
			return nil
		})
	}
	err := g.Wait()

	total := 0
	for _, s := range samples {
		total += len(s)
	}
	all := make([]int64, 0, total)
	for _, s := range samples {
		all = append(all, s...)
	}
	if int64(len(all)) != counter && err == nil {
		return nil, fmt.Errorf("lost updates: expected %d, counted %d samples", counter, len(all))
	}
	return all, err
}

func runRWMutex(ctx context.Context) ([]int64, error) {
	var rw psync.RWMutex
	samples := make([][]int64, *workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		w := w
		readMostly := w%8 != 0
		samples[w] = make([]int64, 0, *rounds)
		g.Go(func() error {
			for i := 0; i < *rounds; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				start := time.Now()
				if readMostly {
					rw.RLock()
					rw.RUnlock()
				} else {
					rw.Lock()
					rw.Unlock()
				}
				samples[w] = append(samples[w], int64(time.Since(start)))
			}
			return nil
		})
	}
	err := g.Wait()
	total := 0
	for _, s := range samples {
		total += len(s)
	}
	all := make([]int64, 0, total)
	for _, s := range samples {
		all = append(all, s...)
	}
	return all, err
}

func runCond(ctx context.Context) ([]int64, error) {
	var m psync.Mutex
	c := psync.NewCond(&m)
	ready := false
	samples := make([][]int64, *workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		w := w
		samples[w] = make([]int64, 0, *rounds)
		g.Go(func() error {
			for i := 0; i < *rounds; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				start := time.Now()
				m.Lock()
				for !ready {
					c.Wait()
				}
				ready = false
				m.Unlock()
				samples[w] = append(samples[w], int64(time.Since(start)))
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < *rounds**workers; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			m.Lock()
			ready = true
			c.Signal()
			m.Unlock()
		}
		return nil
	})
	err := g.Wait()
	total := 0
	for _, s := range samples {
		total += len(s)
	}
	all := make([]int64, 0, total)
	for _, s := range samples {
		all = append(all, s...)
	}
	return all, err
}

func main() {
	flag.Parse()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGHUP)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		fmt.Println("stop intercepted, waiting for the current scenario to finish")
		cancel()
	}()

	fmt.Printf("scenario[%s] workers[%d] rounds[%d]\n", *scenario, *workers, *rounds)

	var samples []int64
	var err error
	switch *scenario {
	case "mutex":
		samples, err = runMutex(ctx)
	case "rwmutex":
		samples, err = runRWMutex(ctx)
	case "cond":
		samples, err = runCond(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown scenario %q\n", *scenario)
		os.Exit(1)
	}
	if err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "scenario failed: %v\n", err)
		os.Exit(1)
	}
	percentiles(*scenario, samples)
}
