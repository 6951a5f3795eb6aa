package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devplane/internal/devctx"
)

type rngState struct {
	Index   int       `json:"index"`
	Counter [4]uint32 `json:"counter"`
	Key     [2]uint32 `json:"key"`
	Output  [4]uint32 `json:"output"`
}

type rngReport struct {
	Device     int        `json:"device"`
	Seed       uint64     `json:"seed"`
	Count      int        `json:"count"`
	Generation uint64     `json:"generation"`
	States     []rngState `json:"states"`
}

func rngCmd() *cli.Command {
	var (
		device int64
		count  int64
		show   int64
	)

	return &cli.Command{
		Name:  "rng",
		Usage: "Provision device RNG states and print the first few",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "device",
				Usage:       "device id (-1 for the current device)",
				Value:       0,
				Destination: &device,
			},
			&cli.Int64Flag{
				Name:        "count",
				Usage:       "number of states to provision",
				Value:       1024,
				Destination: &count,
			},
			&cli.Int64Flag{
				Name:        "show",
				Usage:       "number of states to print",
				Value:       4,
				Destination: &show,
			},
			jsonFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, _, err := openManager(ctx, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			report, err := provisionStates(m, int(device), int(count), int(show))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(stdout, report)
			}
			fmt.Fprintf(stdout, "device %d: %d states (seed %d, generation %d)\n",
				report.Device, report.Count, report.Seed, report.Generation)
			for _, s := range report.States {
				fmt.Fprintf(stdout, "  [%d] counter=%08x key=%08x output=%08x\n", s.Index, s.Counter, s.Key, s.Output)
			}
			return nil
		},
	}
}

func provisionStates(m *devctx.Manager, device, count, show int) (rngReport, error) {
	h, err := m.RNG().States(device, count)
	if err != nil {
		return rngReport{}, err
	}
	show = min(max(show, 0), h.Count)
	report := rngReport{
		Device:     h.Device,
		Seed:       m.RNG().Seed(),
		Count:      h.Count,
		Generation: h.Generation,
	}
	if show == 0 {
		return report, nil
	}
	states, err := m.RNG().ReadStates(h, show)
	if err != nil {
		return rngReport{}, err
	}
	for i, s := range states {
		report.States = append(report.States, rngState{Index: i, Counter: s.Counter, Key: s.Key, Output: s.Output})
	}
	return report, nil
}
