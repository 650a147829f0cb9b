// Package report logs trial progress and writes the final per-operation summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	zlog "github.com/rs/zerolog/log"
)

type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	CSV   Format = "csv"
)

var Formats = []Format{Table, JSON, CSV}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("unknown report format %q (want table, json or csv)", s)
	}
	return f, nil
}

// Summary is everything the final report shows about one run.
type Summary struct {
	RunID        string             `json:"run_id"`
	Engine       string             `json:"engine"`
	Configs      map[string]string  `json:"configs"`
	TotalRows    int                `json:"total_rows"`
	Trials       int                `json:"trials"`
	WarmupTrials int                `json:"warmup_trials"`
	Results      []benchmark.Result `json:"results"`
}

// Reporter implements benchmark.Reporter. Trials go to the log, the summary to out.
type Reporter struct {
	out     io.Writer
	format  Format
	summary Summary
	err     error
}

func New(out io.Writer, format Format, summary Summary) *Reporter {
	return &Reporter{out: out, format: format, summary: summary}
}

func (r *Reporter) TrialCompleted(trial int, samples []benchmark.Sample) {
	event := zlog.Info().Str("run", r.summary.RunID).Str("engine", r.summary.Engine).Int("trial", trial)
	for _, s := range samples {
		event = event.Int64(string(s.Operation)+"_ms", s.ElapsedMs).Int64(string(s.Operation)+"_cpu_ms", s.CPUMs)
	}
	event.Msg("Trial completed")
}

func (r *Reporter) Completed(results []benchmark.Result) {
	r.summary.Results = results
	r.err = Write(r.out, r.format, r.summary)
}

// Err returns the error of writing the summary, if any.
func (r *Reporter) Err() error {
	return r.err
}

// Write renders s to w in the given format.
func Write(w io.Writer, format Format, s Summary) error {
	if len(s.Results) == 0 {
		return fmt.Errorf("no results to report")
	}
	switch format {
	case JSON:
		return GenerateJSON(w, s)
	case CSV:
		return GenerateCSV(w, s)
	default:
		return Generate(w, s)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Generate writes a markdown table of the trimmed means.
func Generate(w io.Writer, s Summary) error {
	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Engine: **%s** (run %s)\n", s.Engine, s.RunID)
	fmt.Fprintf(w, "Rows: %d, trials: %d, warm-up trials: %d\n", s.TotalRows, s.Trials, s.WarmupTrials)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Operation | Elapsed | CPU |")
	fmt.Fprintln(w, "|-----------|---------|-----|")
	for _, r := range s.Results {
		fmt.Fprintf(w, "| %s | %s | %s |\n", r.Operation, formatMs(r.MeanElapsedMs), formatMs(r.MeanCPUMs))
	}

	if len(s.Configs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Config | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	for _, k := range sortedKeys(s.Configs) {
		fmt.Fprintf(w, "| %s | %s |\n", k, s.Configs[k])
	}
	_, err := fmt.Fprintln(w)
	return err
}

// GenerateJSON writes s as indented JSON.
func GenerateJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(s)
}

// GenerateCSV writes one "Csv:" header and one "Csv:" line per operation, followed by the same
// data in key-value form to ease reading.
func GenerateCSV(w io.Writer, s Summary) error {
	configs := sortedKeys(s.Configs)

	header := "Csv:run,engine,rows,trials,warmup"
	prefix := fmt.Sprintf("Csv:%s,%s,%d,%d,%d", s.RunID, s.Engine, s.TotalRows, s.Trials, s.WarmupTrials)
	kv := fmt.Sprintf("run: %s\nengine: %s\nrows: %d\ntrials: %d\nwarmup: %d",
		s.RunID, s.Engine, s.TotalRows, s.Trials, s.WarmupTrials)

	for _, config := range configs {
		header += "," + config
		prefix += "," + s.Configs[config]
		kv += fmt.Sprintf("\n%s: %s", config, s.Configs[config])
	}

	fmt.Fprintln(w, header+",operation,elapsedMs,cpuMs")
	for _, r := range s.Results {
		fmt.Fprintf(w, "%s,%s,%d,%d\n", prefix, r.Operation, r.MeanElapsedMs, r.MeanCPUMs)
		kv += fmt.Sprintf("\n%s: %d ms (cpu %d ms)", r.Operation, r.MeanElapsedMs, r.MeanCPUMs)
	}

	_, err := fmt.Fprintln(w, kv)
	return err
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}
