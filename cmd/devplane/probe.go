package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/devplane/internal/devctx"
	"github.com/samcharles93/devplane/internal/logger"
)

type probeResult struct {
	Device int `json:"device"`
	Thread int `json:"thread"`
	// Reused is true when a second request on the same thread returned the
	// same context.
	Reused bool `json:"reused"`
}

type probeReport struct {
	RunID    string        `json:"run_id"`
	Backend  string        `json:"backend"`
	Contexts int           `json:"contexts"`
	Results  []probeResult `json:"results"`
}

func probeCmd() *cli.Command {
	var threads int64

	return &cli.Command{
		Name:  "probe",
		Usage: "Create execution contexts on every device from several OS threads",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "threads",
				Usage:       "OS threads per device",
				Value:       2,
				Destination: &threads,
			},
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if threads < 1 {
				return fmt.Errorf("--threads must be >= 1")
			}
			m, picked, err := openManager(ctx, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			report, err := runProbe(ctx, m, int(threads))
			if err != nil {
				return err
			}
			report.Backend = picked
			if jsonOutput {
				return writeJSON(stdout, report)
			}
			fmt.Fprintf(stdout, "run %s: %d contexts on backend %s\n", report.RunID, report.Contexts, report.Backend)
			for _, r := range report.Results {
				fmt.Fprintf(stdout, "  device %d thread %d reused=%v\n", r.Device, r.Thread, r.Reused)
			}
			return nil
		},
	}
}

// runProbe requests a context twice from each of threads locked goroutines
// per device.
func runProbe(ctx context.Context, m *devctx.Manager, threads int) (probeReport, error) {
	log := logger.FromContext(ctx)
	report := probeReport{RunID: uuid.NewString()}
	n, err := m.Capabilities().DeviceCount()
	if err != nil {
		return report, err
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for dev := range n {
		for range threads {
			g.Go(func() error {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				if err := ctx.Err(); err != nil {
					return err
				}

				first, err := m.Registry().Context(dev)
				if err != nil {
					return fmt.Errorf("device %d: %w", dev, err)
				}
				second, err := m.Registry().Context(dev)
				if err != nil {
					return fmt.Errorf("device %d: %w", dev, err)
				}
				if err := first.Stream.Synchronize(); err != nil {
					return fmt.Errorf("device %d stream: %w", dev, err)
				}

				mu.Lock()
				report.Results = append(report.Results, probeResult{Device: dev, Thread: first.Thread, Reused: first == second})
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Contexts = m.Registry().Len()
	log.Debug("probe complete", "run", report.RunID, "contexts", report.Contexts)
	return report, nil
}
