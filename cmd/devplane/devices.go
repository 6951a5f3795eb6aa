package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/devplane/internal/devctx"
)

type devicesReport struct {
	Backend string                `json:"backend"`
	Devices []devctx.Capabilities `json:"devices"`
	// Uniform is true when every device shares one compute capability.
	Uniform bool `json:"uniform"`
}

func devicesCmd() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List devices and their capability gates",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			m, picked, err := openManager(ctx, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			report, err := collectDevices(ctx, m, picked)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(stdout, report)
			}
			return printDevices(report)
		},
	}
}

func collectDevices(ctx context.Context, m *devctx.Manager, picked string) (devicesReport, error) {
	caps := m.Capabilities()
	if err := caps.Warm(ctx); err != nil {
		return devicesReport{}, fmt.Errorf("query devices: %w", err)
	}
	all, err := caps.All()
	if err != nil {
		return devicesReport{}, err
	}
	ids := make([]int, len(all))
	for i := range all {
		ids[i] = all[i].Properties.Device
	}
	uniform, err := caps.SameComputeCapability(ids)
	if err != nil {
		return devicesReport{}, err
	}
	return devicesReport{Backend: picked, Devices: all, Uniform: uniform}, nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printDevices(r devicesReport) error {
	if len(r.Devices) == 0 {
		_, err := fmt.Fprintf(stdout, "no devices (backend: %s)\n", r.Backend)
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "COMPUTE", "SMS", "MEMORY", "INT8", "INT8 TC", "FP16 TC").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, c := range r.Devices {
		p := c.Properties
		t.Row(
			strconv.Itoa(p.Device),
			p.Name,
			fmt.Sprintf("%d.%d", p.ComputeMajor, p.ComputeMinor),
			strconv.Itoa(p.MultiProcessors),
			formatBytes(p.TotalMemory),
			yesNo(c.SupportsInt8),
			yesNo(c.Int8TensorPath),
			yesNo(c.FP16TensorPath),
		)
	}
	if _, err := fmt.Fprintln(stdout, t.String()); err != nil {
		return err
	}
	if !r.Uniform {
		_, err := fmt.Fprintln(stdout, "note: devices report different compute capabilities")
		return err
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
