package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/pavel-zeman/mssql-mongodb-performance/benchmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary() Summary {
	return Summary{
		RunID:        "0b8f5f7e-2c1a-4c0e-9d43-1f3a5c6b7d8e",
		Engine:       "sqlserver",
		Configs:      map[string]string{"table": "tsdata", "dialect": "sqlserver"},
		TotalRows:    100000,
		Trials:       21,
		WarmupTrials: 10,
		Results: []benchmark.Result{
			{Operation: benchmark.Insert, MeanElapsedMs: 1234, MeanCPUMs: 56},
			{Operation: benchmark.BatchUpdate, MeanElapsedMs: 7, MeanCPUMs: 3},
		},
	}
}

func TestGenerate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, summary()))

	output := buf.String()
	assert.Contains(t, output, "Engine: **sqlserver**")
	assert.Contains(t, output, "Rows: 100000, trials: 21, warm-up trials: 10")
	assert.Contains(t, output, "| insert | 1.23s | 56ms |")
	assert.Contains(t, output, "| batch_update | 7ms | 3ms |")
	assert.Less(t, strings.Index(output, "| dialect |"), strings.Index(output, "| table |"))
}

func TestGenerateJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateJSON(&buf, summary()))

	var decoded Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, summary(), decoded)
	assert.Contains(t, buf.String(), `"mean_elapsed_ms": 1234`)
}

func TestGenerateCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateCSV(&buf, summary()))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "Csv:run,engine,rows,trials,warmup,dialect,table,operation,elapsedMs,cpuMs", lines[0])
	assert.Equal(t, "Csv:0b8f5f7e-2c1a-4c0e-9d43-1f3a5c6b7d8e,sqlserver,100000,21,10,sqlserver,tsdata,insert,1234,56", lines[1])
	assert.Equal(t, "Csv:0b8f5f7e-2c1a-4c0e-9d43-1f3a5c6b7d8e,sqlserver,100000,21,10,sqlserver,tsdata,batch_update,7,3", lines[2])
	assert.Contains(t, buf.String(), "\ninsert: 1234 ms (cpu 56 ms)\n")
}

func TestWriteWithoutResults(t *testing.T) {
	s := summary()
	s.Results = nil

	assert.Error(t, Write(&bytes.Buffer{}, Table, s))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestReporter(t *testing.T) {
	s := summary()
	results := s.Results
	s.Results = nil

	var buf bytes.Buffer
	r := New(&buf, CSV, s)
	r.TrialCompleted(1, []benchmark.Sample{{Operation: benchmark.Insert, ElapsedMs: 10, CPUMs: 2}})
	r.Completed(results)

	require.NoError(t, r.Err())
	assert.True(t, strings.HasPrefix(buf.String(), "Csv:run,"))

	failing := New(failingWriter{}, JSON, s)
	failing.Completed(results)
	assert.ErrorContains(t, failing.Err(), "disk full")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestFormatMs(t *testing.T) {
	assert.Equal(t, "999ms", formatMs(999))
	assert.Equal(t, "1.00s", formatMs(1000))
	assert.Equal(t, "61.50s", formatMs(61500))
}
