package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir     string
	cfgDir  string
	data    string
	out     string
	logFile string
}

func writeTrips(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("START_DATE,END_DATE,CATEGORY,START,STOP,MILES,PURPOSE\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d/%d/2016 %d:05,%d/%d/2016 %d:35,%s,Cary,Morrisville,%d.2,%s\n",
			i%12+1, i%28+1, i%24, i%12+1, i%28+1, i%24,
			[]string{"Business", "Personal"}[i%2], i%30+1, []string{"Meeting", "", "Customer Visit"}[i%3])
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

// newTestEnv 临时目录下的配置、数据和输出
func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:     dir,
		cfgDir:  filepath.Join(dir, "config"),
		data:    filepath.Join(dir, "trips.csv"),
		out:     filepath.Join(dir, "charts"),
		logFile: filepath.Join(dir, "app.log"),
	}
	require.NoError(t, os.MkdirAll(env.cfgDir, 0755))
	writeTrips(t, env.data, 36)

	cfg := fmt.Sprintf(`{
  "data_file": %q,
  "output_dir": %q,
  "data_dir": %q,
  "log_name": %q,
  "log_stderr": false,
  "chart": { "width": 12, "height": 6 },
  "report": { "workbook": false, "pdf": false },
  "schedule": { "interval": "1h" }%s
}`, env.data, env.out, filepath.Join(dir, "data"), env.logFile, extra)
	require.NoError(t, os.WriteFile(filepath.Join(env.cfgDir, "config.json"), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(env.cfgDir, "dataconfig.json"), []byte(`{}`), 0644))
	return env
}

func execute(ctx context.Context, args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := execute(context.Background(), "--config-dir", env.cfgDir, "run", "--xlsx", "--pdf")
	require.NoError(t, err)
	assert.Contains(t, out, reportTitle)
	assert.Contains(t, out, "36 read, 36 kept")
	assert.Contains(t, out, "9 written")

	for _, name := range []string{"category_purpose", "day_night", "correlation", "monthly_miles", "day_distribution"} {
		assert.FileExists(t, filepath.Join(env.out, name+".png"))
	}
	assert.FileExists(t, filepath.Join(env.out, "report.xlsx"))
	assert.FileExists(t, filepath.Join(env.out, "report.pdf"))

	logData, err := os.ReadFile(env.logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "运行完成")
}

func TestRunCommandOverrides(t *testing.T) {
	env := newTestEnv(t, "")
	other := filepath.Join(env.dir, "other.csv")
	writeTrips(t, other, 12)
	out := filepath.Join(env.dir, "elsewhere")

	stdout, err := execute(context.Background(), "--config-dir", env.cfgDir, "run", "--data", other, "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "12 read, 12 kept")
	assert.FileExists(t, filepath.Join(out, "day_night.png"))
	assert.NoFileExists(t, filepath.Join(out, "report.xlsx"))
	assert.NoDirExists(t, env.out)
}

func TestRunCommandErrors(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := execute(context.Background(), "--config-dir", filepath.Join(env.dir, "missing"), "run")
	assert.Error(t, err)

	_, err = execute(context.Background(), "--config-dir", env.cfgDir, "run", "--data", filepath.Join(env.dir, "nope.csv"))
	assert.Error(t, err)

	bad := filepath.Join(env.dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("CATEGORY,MILES\nBusiness,3\n"), 0644))
	_, err = execute(context.Background(), "--config-dir", env.cfgDir, "run", "--data", bad)
	assert.ErrorContains(t, err, "START_DATE")
}

func TestWatchCommand(t *testing.T) {
	env := newTestEnv(t, "")
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "--config-dir", env.cfgDir, "watch")
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(env.out, "day_distribution.png"))
		return err == nil
	}, 30*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestServeCommand(t *testing.T) {
	env := newTestEnv(t, `, "server": { "gin_mode": "test" }`)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := execute(ctx, "--config-dir", env.cfgDir, "serve", "--addr", addr)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestFetchWithoutMailbox(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := execute(context.Background(), "--config-dir", env.cfgDir, "fetch")
	assert.ErrorIs(t, err, errNoMailbox)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "tripanalysis dev\n", out)
}
