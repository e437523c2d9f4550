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
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	ba "github.com/mlnoga/burstalign/internal"
	"github.com/mlnoga/burstalign/internal/align"
	"github.com/mlnoga/burstalign/internal/ops"
	"github.com/mlnoga/burstalign/internal/ops/post"
	"github.com/mlnoga/burstalign/internal/ops/ref"
	"github.com/mlnoga/burstalign/internal/rest"
	"github.com/mlnoga/burstalign/internal/synth"
	"github.com/pbnjay/memory"
)

const version = "0.1.0"

var totalMiBs = memory.TotalMemory() / 1024 / 1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", "aligned%04d.tif", "save aligned frames with given filename pattern, .tif or .jpg")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output pattern with .log")
var fieldViz = flag.String("fieldviz", "", "save alignment fields as PNG with given filename pattern, e.g. `field%04d.png`")
var statsOut = flag.String("stats", "", "save per-frame statistics as CSV to `file`")
var config = flag.String("config", "", "load alignment settings from YAML or JSON `file`. Flags given explicitly take precedence")
var saveConfig = flag.String("saveConfig", "", "save effective alignment settings as YAML to `file`")

var refMode = flag.String("refMode", "sharpest", "reference frame selection: sharpest, medianLoc, fileName or fileID")
var refFile = flag.String("ref", "", "use given `file` as alignment reference, implies refMode=fileName")
var refID = flag.Int("refID", 0, "use frame with given ID as reference for refMode=fileID")

var tile = flag.Int("tile", 16, "tile size on the finest pyramid level, even")
var search = flag.Int("search", 64, "overall search distance in pixels of the finest pyramid level")
var mosaic = flag.Int("mosaic", 2, "mosaic pattern width, 2 for Bayer, 6 for X-Trans, 1 for none")
var levels = flag.String("levels", "", "explicit pyramid levels as factor:tile:search,... finest first, e.g. `2:16:2,4:16:2`")
var exposure = flag.String("exposure", "auto", "exposure handling: uniform, varying or auto")
var black = flag.Float64("black", 0, "black level subtracted before matching")
var wb = flag.String("wb", "", "white balance factors r,g,b for Bayer normalization, empty for none")
var layout = flag.String("layout", "bayer", "sensor layout: bayer or xtrans")
var cfa = flag.String("cfa", "RGGB", "color filter array type, one of RGGB, GRBG, GBRG, BGGR")
var precision = flag.String("precision", "float32", "pyramid storage precision: float32 or float16")
var evaluator = flag.String("evaluator", "auto", "tile difference evaluator: auto, generic or sliding")
var penalty = flag.Float64("penalty", align.DefaultOOBPenalty, "matching cost of each out-of-bounds pixel")
var maxShift = flag.Float64("maxShift", 0, "skip frames whose mean displacement exceeds this many pixels, 0=keep all")
var verbose = flag.Bool("verbose", false, "log the alignment field of every pyramid level")

var threads = flag.Int("threads", runtime.GOMAXPROCS(0), "number of frames to process in parallel")
var alignMemory = flag.Int64("memory", int64((totalMiBs*7)/10), "total MiB of memory to use for alignment, default=0.7x physical memory")

var frames = flag.Int("frames", 8, "synth: number of frames")
var width = flag.Int("width", 512, "synth: frame width")
var height = flag.Int("height", 384, "synth: frame height")
var shift = flag.Int("shift", 8, "synth: maximum shift per axis in pixels")
var noise = flag.Float64("noise", 20, "synth: noise standard deviation")
var gain = flag.Float64("gain", 0, "synth: maximum relative exposure deviation")
var seed = flag.Uint("seed", 1, "synth: random seed")

var addr = flag.String("addr", ":8080", "serve: listen address")
var chroot = flag.String("chroot", "", "serve: change filesystem root to this directory")
var setuid = flag.Int("setuid", -1, "serve: change user id to this value, -1=keep")

func main() {
	logWriter := ba.LogWriter()
	debug.SetGCPercent(10)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Burstalign Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (align|stats|synth|serve|legal|version) (img0.tif ... imgn.tif)

Commands:
  align   Align input frames to a reference frame
  stats   Show input image statistics
  synth   Write a synthetic burst with known shifts, using -out as pattern
  serve   Serve the REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if *out != "" {
			base := strings.NewReplacer("%04d", "", "%02d", "", "%d", "").Replace(*out)
			*log = strings.TrimSuffix(base, filepath.Ext(base)) + ".log"
		} else {
			*log = ""
		}
	}
	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}
	if *log != "" && (args[0] == "align" || args[0] == "stats" || args[0] == "synth") {
		if err := ba.LogAlsoToFile(*log); err != nil {
			ba.LogFatalf("Unable to open logfile '%s'\n", *log)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			ba.LogFatalf("Could not create CPU profile: %s\n", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			ba.LogFatalf("Could not start CPU profile: %s\n", err)
		}
		defer pprof.StopCPUProfile()
	}

	var err error
	switch args[0] {
	case "align":
		printBanner(logWriter)
		err = cmdAlign(args[1:], logWriter)

	case "stats":
		printBanner(logWriter)
		err = cmdStats(args[1:], logWriter)

	case "synth":
		err = cmdSynth(logWriter)

	case "serve":
		printBanner(logWriter)
		if err = rest.MakeSandbox(logWriter, *chroot, *setuid); err == nil {
			err = rest.Serve(*addr)
		}

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed := time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			ba.LogFatalf("Could not create memory profile: %s\n", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			ba.LogFatalf("Could not write allocation profile: %s\n", err)
		}
	}

	if err != nil {
		ba.LogFatalf("Error: %s\n", err.Error())
	}
	ba.LogClose()
}

// Prints CPU and memory information
func printBanner(logWriter io.Writer) {
	fmt.Fprintf(logWriter, "Running on %s with %d logical cores, %d KiB L1 data cache, AVX2 %v, %d MiB memory\n",
		strings.TrimSpace(cpuid.CPU.BrandName), cpuid.CPU.LogicalCores, cpuid.CPU.Cache.L1D/1024, cpuid.CPU.AVX2(), totalMiBs)
}

// Creates an operator context from the command line flags
func newContext(logWriter io.Writer) *ops.Context {
	c := ops.NewContext(logWriter)
	if *threads > 0 {
		c.MaxThreads = *threads
	}
	c.AlignMemoryMB = int(*alignMemory)
	return c
}

// Align all input files to a reference frame
func cmdAlign(args []string, logWriter io.Writer) error {
	opAlign, err := alignFromFlags()
	if err != nil {
		return err
	}
	if *saveConfig != "" {
		if err := post.SaveAlignConfig(*saveConfig, &opAlign.AlignConfig); err != nil {
			return err
		}
	}

	mode, err := ref.ParseRefSelMode(*refMode)
	if err != nil {
		return err
	}
	if *refFile != "" {
		mode = ref.RFMFileName
	}
	op := post.NewOpBurst(
		ops.NewOpLoadMany(args),
		ref.NewOpSelectReference(mode, *refFile, *refID),
		opAlign,
		ref.NewOpFilter(float32(*maxShift)),
		ref.NewOpExportStats(*statsOut),
		ops.NewOpSave(*out),
	)

	m, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "\nAligning with these settings:\n%s\n", string(m))

	n, err := post.Run(op, newContext(logWriter))
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Aligned %d frames.\n", n)
	return nil
}

// Show statistics for all input files
func cmdStats(args []string, logWriter io.Writer) error {
	opExport := ref.NewOpExportStats(*statsOut)
	op := ops.NewOpSequence(ops.NewOpLoadMany(args), opExport)
	_, err := post.Run(op, newContext(logWriter))
	return err
}

// Write a synthetic burst with known displacements
func cmdSynth(logWriter io.Writer) error {
	burst := synth.NewBurst(synth.BurstConfig{
		Width: *width, Height: *height, Frames: *frames,
		MaxShift: *shift, Noise: float32(*noise), GainJitter: float32(*gain), Seed: uint32(*seed),
	})
	for i, bf := range burst {
		bf.Image.ID = i
		fmt.Fprintf(logWriter, "%d: Shift (%d,%d) gain %.4f\n", i, bf.DX, bf.DY, bf.Gain)
		if _, err := ops.NewOpSave(*out).Apply(bf.Image, &ops.Context{Log: logWriter}); err != nil {
			return err
		}
	}
	return nil
}

// Builds the alignment operator from the optional configuration file and the flags
func alignFromFlags() (*post.OpAlign, error) {
	op := post.NewOpAlignDefault()
	if *config != "" {
		var err error
		if op, err = post.LoadOpAlign(*config); err != nil {
			return nil, err
		}
	}

	// without a configuration file, all flags apply. With one, only those given explicitly
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply := func(name string) bool { return *config == "" || set[name] }

	ac := &op.AlignConfig
	if apply("tile") {
		ac.TileSize = *tile
	}
	if apply("search") {
		ac.SearchDist = *search
	}
	if apply("mosaic") {
		ac.MosaicWidth = *mosaic
	}
	if apply("levels") && *levels != "" {
		ls, err := parseLevels(*levels)
		if err != nil {
			return nil, err
		}
		ac.Levels = ls
	}
	if apply("exposure") {
		ac.Exposure = *exposure
	}
	if apply("black") {
		ac.BlackLevel = float32(*black)
	}
	if apply("wb") && *wb != "" {
		factors, err := parseFloats(*wb, 3)
		if err != nil {
			return nil, fmt.Errorf("parsing -wb: %w", err)
		}
		copy(ac.ColorFactors[:], factors)
	}
	if apply("layout") {
		ac.Layout = *layout
	}
	if apply("cfa") {
		ac.CFA = *cfa
	}
	if apply("precision") {
		ac.Precision = *precision
	}
	if apply("evaluator") {
		ac.Evaluator = *evaluator
	}
	if apply("penalty") {
		ac.OOBPenalty = float32(*penalty)
	}
	if apply("fieldviz") {
		ac.FieldViz = *fieldViz
	}
	if apply("verbose") {
		ac.Verbose = *verbose
	}
	return op, nil
}

// Parses levels given as factor:tile:search,... finest first
func parseLevels(s string) ([]align.Level, error) {
	var factors, tiles, dists []int
	for _, part := range strings.Split(s, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("level '%s' is not factor:tile:search", part)
		}
		var vals [3]int
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("level '%s': %w", part, err)
			}
			vals[i] = v
		}
		factors, tiles, dists = append(factors, vals[0]), append(tiles, vals[1]), append(dists, vals[2])
	}
	return align.LevelsFromArrays(factors, tiles, dists)
}

// Parses exactly n comma-separated floats
func parseFloats(s string, n int) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("need %d comma-separated values, got '%s'", n, s)
	}
	res := make([]float32, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		res[i] = float32(v)
	}
	return res, nil
}
