// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	nl "github.com/mlnoga/insarseed/internal"
	"github.com/mlnoga/insarseed/internal/ops"
	"github.com/mlnoga/insarseed/internal/ops/ref"
	"github.com/mlnoga/insarseed/internal/picker"
	"github.com/mlnoga/insarseed/internal/rest"
	"github.com/mlnoga/insarseed/internal/seed"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var config = flag.String("config", "", "load seeding options from YAML or JSON `file`. Flags override its values")
var out = flag.String("out", "", "save output to `file`. Only used with a single input file")
var prefix = flag.String("prefix", ref.DefaultPrefix, "prefix for output file names")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` derives it from -out, or logs to stdout only")
var statsFile = flag.String("stats", "", "export per-epoch statistics of info as CSV to `file`")
var preview = flag.String("preview", "insarseed_preview.jpg", "JPEG preview `file` written for manual picking")

var strategy = flag.String("strategy", "random", "reference selection strategy: input-coord, geo-coord, max-coherence, manual, random or global-average")
var minCoherence = flag.Float64("minCoherence", seed.DefaultMinQuality, "minimum coherence for max-coherence selection, in [0,1]")
var mask = flag.String("mask", "", "load mask from FITS or TIFF `file`, nonzero finite pixels are usable")
var coherence = flag.String("coherence", "", "load coherence from FITS or TIFF `file`. Implies -strategy max-coherence unless given")
var refY = flag.Int("refY", -1, "reference pixel row, -1=unset")
var refX = flag.Int("refX", -1, "reference pixel column, -1=unset")
var refLat = flag.Float64("refLat", 0, "reference latitude, used if both -refLat and -refLon are given")
var refLon = flag.Float64("refLon", 0, "reference longitude, used if both -refLat and -refLon are given")
var lookup = flag.String("lookup", "", "lookup table `file` with azimuth and range epochs, for geo-coord on radar geometry")
var referenceFile = flag.String("ref", "", "read the reference point from the attributes of `file`")
var markAttribute = flag.Bool("markAttribute", false, "only record the reference point in the input attributes, leaving data unchanged")
var randomFallback = flag.Bool("randomFallback", true, "fall back to a random valid pixel if all other strategies fail")
var parallel = flag.Bool("parallel", true, "process files concurrently. Manual selection is always sequential")

var addr = flag.String("addr", ":8080", "listen address for serve")
var chroot = flag.String("chroot", "", "chroot to `dir` before serving (requires root)")
var setuid = flag.Int("setuid", -1, "switch to user `id` before serving, -1=keep")

func main() {
	logWriter := os.Stdout
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `InSAR Seed Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (seed|reset|refdate|info|serve|legal|version) [date] (file0.fits ... filen.fits)

Commands:
  seed     Reference datasets spatially to a pixel or the global average
  reset    Remove spatial reference attributes in place
  refdate  Change the reference date of time series, e.g. refdate 20200113 timeseries.fits
  info     Show dataset structure, statistics and reference attributes
  serve    Serve the HTTP API
  legal    Show license and attribution information
  version  Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if *out != "" {
			*log = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		} else {
			*log = ""
		}
	}
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s'\n", *log)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatalf("Could not create CPU profile: %s\n", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatalf("Could not start CPU profile: %s\n", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	c := ops.NewContext(nl.LogWriter())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch args[0] {
	case "seed":
		err = cmdSeed(ctx, args[1:], c)

	case "reset":
		err = runBatch(ctx, args[1:], ref.NewOpReset(), false, c)

	case "refdate":
		if len(args) < 3 {
			err = fmt.Errorf("refdate needs a date and at least one file")
			break
		}
		op := ref.NewOpRefDate(args[1])
		op.Out = *out
		if _, err = seed.NormalizeDate(op.RefDate); err == nil {
			err = runBatch(ctx, args[2:], op, *parallel, c)
		}

	case "info":
		err = cmdInfo(ctx, args[1:], *statsFile, *parallel, c)

	case "serve":
		if err = rest.MakeSandbox(c.Log, *chroot, *setuid); err == nil {
			fmt.Fprintf(c.Log, "Serving on %s\n", *addr)
			err = rest.Serve(*addr)
		}

	case "legal":
		cmdLegal(c.Log)

	case "version":
		fmt.Fprintf(c.Log, "Version %s on %s, %d MiB memory\n", version, c.CPU, c.MemoryMB)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(c.Log, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	elapsed := time.Since(start)
	fmt.Fprintf(c.Log, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatalf("Could not create memory profile: %s\n", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatalf("Could not write allocation profile: %s\n", err)
		}
	}

	if err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}
	nl.LogSync()
}

// Builds the seeding operator from the config file and flags, and runs it on all files
func cmdSeed(ctx context.Context, args []string, c *ops.Context) error {
	op, err := seedOptions()
	if err != nil {
		return err
	}
	if op.IsInteractive() {
		c.Picker = picker.NewConsole(os.Stdin, c.Log, *preview)
	}

	m, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Seeding with these settings:\n%s\n", string(m))
	return runBatch(ctx, args, op, *parallel, c)
}

// Merges seeding options: flags given on the command line override the config file
func seedOptions() (*ref.OpSeed, error) {
	op := ref.NewOpSeedDefault()
	if *config != "" {
		var err error
		if op, err = ref.LoadConfig(*config); err != nil {
			return nil, err
		}
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["strategy"] {
		s, err := seed.ParseStrategy(*strategy)
		if err != nil {
			return nil, err
		}
		op.Strategy = s
	} else if set["coherence"] && *config == "" {
		op.Strategy = seed.MaxCoherence
	}
	if set["minCoherence"] {
		op.MinCoherence = *minCoherence
	}
	if set["mask"] {
		op.MaskFile = *mask
	}
	if set["coherence"] {
		op.CoherenceFile = *coherence
	}
	if set["ref"] {
		// a reference file given on the command line beats points from the config file
		op.ReferenceFile = *referenceFile
		op.RefY, op.RefX, op.RefLat, op.RefLon = nil, nil, nil, nil
	}
	if *refY >= 0 && *refX >= 0 {
		op.RefY, op.RefX = refY, refX
	}
	if set["refLat"] && set["refLon"] {
		op.RefLat, op.RefLon = refLat, refLon
	}
	if set["lookup"] {
		op.LookupFile = *lookup
	}
	if set["markAttribute"] {
		op.MarkAttribute = *markAttribute
	}
	if set["randomFallback"] {
		op.RandomFallback = *randomFallback
	}
	if set["out"] {
		op.Out = *out
	}
	if set["prefix"] {
		op.Prefix = *prefix
	}
	return op, op.Finalize()
}

// Shows dataset information and exports statistics of all readable files, even if some failed
func cmdInfo(ctx context.Context, patterns []string, statsFile string, parallel bool, c *ops.Context) error {
	op := ref.NewOpInfo()
	op.StatsFile = statsFile
	err := runBatch(ctx, patterns, op, parallel, c)
	return errors.Join(err, op.WriteStats(c))
}

// Runs a per-file operator over all files matching the patterns. Fails if any file failed
func runBatch(ctx context.Context, patterns []string, op ops.Operator, parallel bool, c *ops.Context) error {
	if len(patterns) == 0 {
		return fmt.Errorf("no input files")
	}
	batch := ops.NewOpBatch(ops.NewOpLoadMany(patterns), op, parallel)
	outs, err := batch.Run(ctx, c)
	if err != nil {
		return err
	}
	return summarize(c.Log, outs)
}

func summarize(w io.Writer, outs []ops.Outcome) error {
	failed := 0
	for _, o := range outs {
		if o.Failed() {
			failed++
			fmt.Fprintf(w, "Failed: %s: %s\n", o.FileName, o.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(outs))
	}
	return nil
}
