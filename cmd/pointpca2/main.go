// Command pointpca2 computes the PointPCA2 quality vector of a test point
// cloud against a reference cloud.
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/pointpca2"
	"github.com/banshee-data/pointpca2/internal/cloudio"
	"github.com/banshee-data/pointpca2/internal/config"
	"github.com/banshee-data/pointpca2/internal/db"
	"github.com/banshee-data/pointpca2/internal/features"
	"github.com/banshee-data/pointpca2/internal/monitoring"
	"github.com/banshee-data/pointpca2/internal/report"
	"github.com/banshee-data/pointpca2/internal/version"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	monitoring.SetLogger(func(format string, v ...interface{}) {
		fmt.Fprintf(stderr, format+"\n", v...)
	})
	monitoring.SetLogWriters(monitoring.LogWriters{Ops: stderr})

	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			return runMigrate(args[1:], stdout, stderr)
		case "runs":
			return runRuns(args[1:], stdout, stderr)
		case "version":
			fmt.Fprintln(stdout, version.String())
			return exitOK
		case "help":
			printUsage(stdout)
			return exitOK
		}
	}
	return runCompute(args, stdout, stderr)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `pointpca2 - full-reference quality metric for coloured point clouds

Usage:
  pointpca2 [flags] <reference> <test>
  pointpca2 migrate -db <file> up|down|version
  pointpca2 runs -db <file> [-limit n] [-id run]
  pointpca2 version

Clouds are read from .ply, .las, .csv, .xyz or .txt files.
Run "pointpca2 -h" for the compute flags.
`)
}

// computeFlags holds the parsed command line of the compute command.
type computeFlags struct {
	configPath  string
	html        string
	plot        string
	plotChannel int
	bins        int
	trace       bool
	showVersion bool
}

func runCompute(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pointpca2", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(stderr)
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}

	defaults := &config.Config{}
	var cf computeFlags
	searchSize := fs.Int("search-size", defaults.GetSearchSize(), "neighbourhood size (points per neighbourhood)")
	workers := fs.Int("workers", defaults.GetWorkers(), "worker goroutines (0 = GOMAXPROCS)")
	merge := fs.Bool("merge-duplicates", false, "merge points sharing a position before computing")
	verbose := fs.Bool("verbose", false, "log progress to stderr")
	format := fs.String("format", defaults.GetFormat(), "output format: text, json or csv")
	dbPath := fs.String("db", "", "record the run in this SQLite database")
	fs.StringVar(&cf.configPath, "config", "", "JSON or YAML config file; flags override it")
	fs.StringVar(&cf.html, "html", "", "write an HTML bar chart of the vector to this file")
	fs.StringVar(&cf.plot, "plot", "", "write a histogram image of one per-point predictor to this file")
	fs.IntVar(&cf.plotChannel, "plot-channel", features.PointToPoint, "predictor index (0-19) for -plot")
	fs.IntVar(&cf.bins, "bins", 50, "histogram bins for -plot")
	fs.BoolVar(&cf.trace, "trace", false, "log every per-point predictor row to stderr")
	fs.BoolVar(&cf.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if cf.showVersion {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}
	refPath, testPath := fs.Arg(0), fs.Arg(1)

	cfg := &config.Config{}
	if cf.configPath != "" {
		loaded, err := config.Load(cf.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return exitError
		}
		cfg = loaded
	}
	var setErr error
	fs.Visit(func(f *flag.Flag) {
		var err error
		switch f.Name {
		case "search-size":
			err = cfg.Set("search_size", *searchSize)
		case "workers":
			err = cfg.Set("workers", *workers)
		case "merge-duplicates":
			err = cfg.Set("merge_duplicates", *merge)
		case "verbose":
			err = cfg.Set("verbose", *verbose)
		case "format":
			err = cfg.Set("format", *format)
		case "db":
			err = cfg.Set("db", *dbPath)
		}
		if err != nil && setErr == nil {
			setErr = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		fmt.Fprintln(stderr, setErr)
		return exitUsage
	}
	if cf.plot != "" && (cf.plotChannel < 0 || cf.plotChannel >= features.NumPredictors) {
		fmt.Fprintf(stderr, "-plot-channel must be in [0, %d)\n", features.NumPredictors)
		return exitUsage
	}

	opts := cfg.Options()
	writers := monitoring.LogWriters{Ops: stderr}
	if opts.Verbose {
		writers.Diag = stderr
	}
	if cf.trace {
		writers.Trace = stderr
	}
	monitoring.SetLogWriters(writers)

	ref, err := cloudio.Read(refPath)
	if err != nil {
		fmt.Fprintf(stderr, "reference: %v\n", err)
		return exitError
	}
	test, err := cloudio.Read(testPath)
	if err != nil {
		fmt.Fprintf(stderr, "test: %v\n", err)
		return exitError
	}
	monitoring.Diagf("read %d reference and %d test points", ref.Len(), test.Len())

	res, err := pointpca2.ComputeDetailed(ref, test, opts)
	if err != nil {
		fmt.Fprintf(stderr, "compute: %v\n", err)
		return exitError
	}

	if err := writeVector(stdout, cfg.GetFormat(), refPath, testPath, opts.SearchSize, res); err != nil {
		fmt.Fprintf(stderr, "output: %v\n", err)
		return exitError
	}

	if path := cfg.GetDBPath(); path != "" {
		if err := recordRun(path, refPath, testPath, opts, res); err != nil {
			fmt.Fprintf(stderr, "db: %v\n", err)
			return exitError
		}
	}
	if cf.html != "" {
		if err := writeHTML(cf.html, refPath, testPath, res); err != nil {
			fmt.Fprintf(stderr, "html: %v\n", err)
			return exitError
		}
		monitoring.Logf("wrote %s", cf.html)
	}
	if cf.plot != "" {
		values := make([]float64, len(res.PerPoint))
		for i, row := range res.PerPoint {
			values[i] = row[cf.plotChannel]
		}
		title := features.Names()[cf.plotChannel]
		if err := report.WriteHistogram(cf.plot, title, values, cf.bins); err != nil {
			fmt.Fprintf(stderr, "plot: %v\n", err)
			return exitError
		}
		monitoring.Logf("wrote %s", cf.plot)
	}
	return exitOK
}

// jsonOutput is the -format json document.
type jsonOutput struct {
	Reference      string             `json:"reference"`
	Test           string             `json:"test"`
	SearchSize     int                `json:"search_size"`
	Predictors     []float64          `json:"predictors"`
	Names          []string           `json:"names"`
	Degenerate     pointpca2.Counts   `json:"degenerate"`
	Merged         pointpca2.Counts   `json:"merged"`
	DurationMillis int64              `json:"duration_ms"`
	ByName         map[string]float64 `json:"by_name"`
}

func writeVector(w io.Writer, format, refPath, testPath string, searchSize int, res *pointpca2.Result) error {
	names := pointpca2.Names()
	switch format {
	case config.FormatJSON:
		out := jsonOutput{
			Reference:      refPath,
			Test:           testPath,
			SearchSize:     searchSize,
			Predictors:     res.Predictors[:],
			Names:          names[:],
			Degenerate:     res.Degenerate,
			Merged:         res.Merged,
			DurationMillis: res.Duration.Milliseconds(),
			ByName:         make(map[string]float64, len(names)),
		}
		for i, n := range names {
			out.ByName[n] = res.Predictors[i]
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case config.FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(names[:]); err != nil {
			return err
		}
		row := make([]string, len(names))
		for i, v := range res.Predictors {
			row[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, n := range names {
			fmt.Fprintf(tw, "%d\t%s\t%.10g\n", i, n, res.Predictors[i])
		}
		return tw.Flush()
	}
}

func recordRun(path, refPath, testPath string, opts pointpca2.Options, res *pointpca2.Result) error {
	store, err := db.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.MigrateUp(); err != nil {
		return err
	}
	names := pointpca2.Names()
	id, err := store.RecordRun(db.Run{
		Reference:           filepath.Base(refPath),
		Test:                filepath.Base(testPath),
		SearchSize:          opts.SearchSize,
		ReferencePoints:     res.ReferenceSize,
		TestPoints:          res.TestSize,
		DegenerateReference: res.Degenerate.Reference,
		DegenerateTest:      res.Degenerate.Test,
		Duration:            res.Duration,
	}, names[:], res.Predictors[:])
	if err != nil {
		return err
	}
	monitoring.Logf("recorded run %s in %s", id, path)
	return nil
}

func writeHTML(path, refPath, testPath string, res *pointpca2.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	names := pointpca2.Names()
	subtitle := fmt.Sprintf("%s vs %s", filepath.Base(refPath), filepath.Base(testPath))
	return report.WriteHTML(f, "PointPCA2", subtitle, names[:], res.Predictors[:])
}

func openDB(fs *flag.FlagSet, path string, stderr io.Writer) (*db.DB, bool) {
	if path == "" {
		fmt.Fprintln(stderr, "-db is required")
		fs.Usage()
		return nil, false
	}
	store, err := db.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "db: %v\n", err)
		return nil, false
	}
	return store, true
}

func runMigrate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: pointpca2 migrate -db <file> up|down|version")
		return exitUsage
	}
	action := fs.Arg(0)
	if action != "up" && action != "down" && action != "version" {
		fmt.Fprintf(stderr, "unknown migrate action %q\n", action)
		return exitUsage
	}
	store, ok := openDB(fs, *dbPath, stderr)
	if !ok {
		return exitUsage
	}
	defer store.Close()

	var err error
	switch action {
	case "up":
		err = store.MigrateUp()
	case "down":
		err = store.MigrateDown()
	}
	if err != nil {
		fmt.Fprintf(stderr, "migrate %s: %v\n", action, err)
		return exitError
	}
	v, dirty, err := store.MigrateVersion()
	if err != nil {
		fmt.Fprintf(stderr, "migrate version: %v\n", err)
		return exitError
	}
	fmt.Fprintf(stdout, "schema version %d", v)
	if dirty {
		fmt.Fprint(stdout, " (dirty)")
	}
	fmt.Fprintln(stdout)
	return exitOK
}

func runRuns(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "SQLite database path")
	limit := fs.Int("limit", 20, "maximum runs to list (0 = all)")
	id := fs.String("id", "", "print the stored vector of this run")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	store, ok := openDB(fs, *dbPath, stderr)
	if !ok {
		return exitUsage
	}
	defer store.Close()
	if err := store.MigrateUp(); err != nil {
		fmt.Fprintf(stderr, "db: %v\n", err)
		return exitError
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	if *id != "" {
		preds, err := store.RunPredictors(*id)
		if err != nil {
			fmt.Fprintf(stderr, "db: %v\n", err)
			return exitError
		}
		if len(preds) == 0 {
			fmt.Fprintf(stderr, "run %s not found\n", *id)
			return exitError
		}
		for _, p := range preds {
			fmt.Fprintf(tw, "%d\t%s\t%.10g\n", p.Index, p.Name, p.Value)
		}
		tw.Flush()
		return exitOK
	}

	runs, err := store.Runs(*limit)
	if err != nil {
		fmt.Fprintf(stderr, "db: %v\n", err)
		return exitError
	}
	fmt.Fprintln(tw, "ID\tCREATED\tREFERENCE\tTEST\tK\tPOINTS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Reference, r.Test,
			r.SearchSize, r.ReferencePoints, r.TestPoints, r.Duration)
	}
	tw.Flush()
	return exitOK
}
