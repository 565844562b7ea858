package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/stakeview/internal/config"
	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/internal/logging"
)

const staged = `{"era":5,"value":"1000000","valueAfter":"2000000"}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"pending", staged, []string{"--era", "5"}, "1000000 (2000000)\n"},
		{"settled", staged, []string{"--era", "6"}, "2000000 (2000000)\n"},
		{"settled collapsed", staged, []string{"--era", "6", "--collapse"}, "2000000\n"},
		{"unknown era", staged, nil, "1000000 (2000000)\n"},
		{"ada", staged, []string{"--era", "5", "--unit", "ada"}, "1.000000 ADA (2.000000 ADA)\n"},
		{"ppm", `[7, 30000, 10000]`, []string{"--era", "7", "-u", "ppm"}, "3.00% (1.00%)\n"},
		{"no change", `[7, 30000, 30000]`, []string{"--era", "7", "-u", "ppm"}, "3.00% (3.00%)\n"},
		{"no change collapsed", `[7, 30000, 30000]`, []string{"--era", "7", "-u", "ppm", "--collapse"}, "3.00%\n"},
		{"malformed", `{"era":5}`, []string{"--era", "5"}, "0 (0)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, append([]string{"resolve"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestResolveJSON(t *testing.T) {
	out, err := execute(t, staged, "resolve", "--era", "5", "--json", "--unit", "ada")
	require.NoError(t, err)

	var got resolved
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, resolved{
		Current: "1.000000 ADA",
		After:   "2.000000 ADA",
		Display: "1.000000 ADA (2.000000 ADA)",
	}, got)
}

func TestResolveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stake.json")
	require.NoError(t, os.WriteFile(path, []byte(staged), 0o644))

	out, err := execute(t, "", "resolve", "-f", path, "--era", "9", "--collapse")
	require.NoError(t, err)
	assert.Equal(t, "2000000\n", out)

	_, err = execute(t, "", "resolve", "-f", filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
}

func TestResolveBadFlags(t *testing.T) {
	_, err := execute(t, staged, "resolve", "--unit", "lovelace")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))

	_, err = execute(t, staged, "resolve", "--era", "-1")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidArgument))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Go version:")
	assert.Contains(t, out, "stakeview dev")

	out, err = execute(t, "", "version", "--json")
	require.NoError(t, err)
	var b buildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, "dev", b.Version)
	assert.Equal(t, runtime.Version(), b.Go)
}

func TestPrintError(t *testing.T) {
	errors.DisableColors()
	defer errors.EnableColors()

	var buf bytes.Buffer
	printError(&buf, errors.New(errors.CodeConfigInvalid).WithDetail("listen address is empty"))
	assert.Contains(t, buf.String(), errors.CodeConfigInvalid)
	assert.Contains(t, buf.String(), "listen address is empty")

	buf.Reset()
	printError(&buf, assert.AnError)
	assert.Contains(t, buf.String(), assert.AnError.Error())
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListen, cfg.Listen)

	_, err = loadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, errors.HasCode(err, errors.CodeConfigNotFound))

	path := filepath.Join(t.TempDir(), config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"listen":":9999","indexer":{"url":"http://indexer.local"}}`), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Listen)
	assert.Equal(t, "http://indexer.local", cfg.Indexer.URL)
}

func TestBuildRequiresIndexer(t *testing.T) {
	_, err := build(context.Background(), config.New(), logging.Discard())
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, "", "serve", "--indexer", "ftp://indexer.local")
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

func TestBuild(t *testing.T) {
	indexer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/era":
			w.Write([]byte(`{"era":12}`))
		case "/validators/v1":
			w.Write([]byte(`{"id":"v1","name":"Alpha","stake":` + staged + `}`))
		case "/validators/v1/rewards":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer indexer.Close()

	cfg := config.New()
	cfg.Indexer.URL = indexer.URL
	cfg.Indexer.FeedURL = "ws" + strings.TrimPrefix(indexer.URL, "http") + "/feed"
	cfg.Blobs.Dir = t.TempDir()

	a, err := build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.loops, "era poller")
	assert.Contains(t, a.loops, "era feed")
	require.NotNil(t, a.registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.loops["era poller"](ctx) }()
	require.Eventually(t, func() bool {
		_, ok := a.provider.CurrentIndex()
		return ok
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	n, _ := a.provider.CurrentIndex()
	assert.EqualValues(t, 12, n)

	rec := httptest.NewRecorder()
	a.dashboard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/validators/v1?wait=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"display": "2.000000 ADA"`)

	rec = httptest.NewRecorder()
	a.dashboard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
