package main

import "github.com/urfave/cli/v3"

var (
	configPath   string
	backendName  string
	seed         uint64
	trueFP16Gemm bool
	logLevel     string
	logFormat    string
	debug        bool
	jsonOutput   bool
)

func planeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "device backend (auto, none, cuda)",
			Value:       "auto",
			Destination: &backendName,
		},
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "seed for device RNG states",
			Destination: &seed,
		},
		&cli.BoolFlag{
			Name:        "true-fp16-gemm",
			Usage:       "accumulate fp16 GEMMs in fp16 (false: fp32)",
			Value:       true,
			Destination: &trueFP16Gemm,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:        "json",
		Usage:       "print JSON instead of a table",
		Destination: &jsonOutput,
	}
}
