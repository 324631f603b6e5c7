package main

import (
	"os"
	"path"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/ugorji/go/codec"

	"goveiss/internal/capture"
	"goveiss/internal/config"
	"goveiss/internal/veiss"
)

type result struct {
	SessionId string               `codec:","`
	Frames    int                  `codec:","`
	Skipped   int                  `codec:","`
	Signal    *veiss.Signal        `codec:","`
	Reps      []veiss.ValidatedRep `codec:","`
	Metrics   []veiss.RepMetrics   `codec:","`
	Summary   veiss.Summary        `codec:","`
	Notes     []veiss.CoachNote    `codec:","`
}

func withExt(file, ext string) string {
	if e := path.Ext(file); e != "" {
		return strings.TrimSuffix(file, e) + ext
	}
	return file + ext
}

func main() {
	var opts struct {
		CaptureFile string  `short:"i" long:"input" description:"Capture file (CSV)" required:"true"`
		OutputFile  string  `short:"o" long:"output" description:"Output file"`
		Parquet     bool    `short:"q" long:"parquet" description:"Also export the processed signal as parquet"`
		RateHint    float64 `short:"r" long:"rate" description:"Sampling rate (Hz) used when timestamps are unusable"`
		Weight      float64 `short:"w" long:"weight" description:"Load of the set (kg)"`
		ConfigFile  string  `short:"c" long:"config" description:"YAML config file path"`
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		config.Default().Log.NewLogger().Error("could not load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger()

	f, err := os.Open(opts.CaptureFile)
	if err != nil {
		logger.Error("could not open capture", "error", err)
		os.Exit(1)
	}
	captures, err := capture.ReadCSV(f)
	f.Close()
	if err != nil {
		logger.Error("could not read capture", "error", err)
		os.Exit(1)
	}

	var results []result
	for _, c := range captures {
		res, err := veiss.Run(c.Buffer, opts.RateHint, cfg.Tuning, logger)
		if err != nil {
			logger.Warn("skipping capture", "session", c.SessionId, "error", err)
			continue
		}
		samples := veiss.Reconcile(res.Metrics, nil)
		results = append(results, result{
			SessionId: c.SessionId,
			Frames:    c.Buffer.Len(),
			Skipped:   c.Skipped,
			Signal:    res.Signal,
			Reps:      res.Reps,
			Metrics:   res.Metrics,
			Summary:   veiss.Summarize(samples, opts.Weight),
			Notes:     veiss.CoachNotes(samples),
		})
		logger.Info("capture processed", "session", c.SessionId, "frames", c.Buffer.Len(),
			"skipped", c.Skipped, "reps", len(res.Reps))

		if opts.Parquet {
			data, err := capture.MarshalParquet(res.Signal, res.Reps)
			if err != nil {
				logger.Error("could not export parquet", "session", c.SessionId, "error", err)
				os.Exit(1)
			}
			name := withExt(opts.CaptureFile, ".parquet")
			if len(captures) > 1 {
				name = withExt(opts.CaptureFile, "-"+c.SessionId+".parquet")
			}
			if err := os.WriteFile(name, data, 0644); err != nil {
				logger.Error("could not write parquet", "file", name, "error", err)
				os.Exit(1)
			}
		}
	}

	output := opts.OutputFile
	if output == "" {
		output = withExt(opts.CaptureFile, ".VEISS")
	}
	fo, err := os.Create(output)
	if err != nil {
		logger.Error("could not create output", "error", err)
		os.Exit(1)
	}
	defer fo.Close()

	var h codec.MsgpackHandle
	enc := codec.NewEncoder(fo, &h)
	if err := enc.Encode(results); err != nil {
		logger.Error("could not encode results", "error", err)
	}
}
