package dashboard

import (
	"TripAnalysis/src/chart"
	"TripAnalysis/src/config"
	"TripAnalysis/src/datasource/file"
	"TripAnalysis/src/processor"
	"TripAnalysis/src/storage"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTrips(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("START_DATE,END_DATE,CATEGORY,START,STOP,MILES,PURPOSE\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d/%d/2016 %d:10,%d/%d/2016 %d:40,%s,Cary,Apex,%d.5,%s\n",
			i%12+1, i%28+1, i%24, i%12+1, i%28+1, i%24,
			[]string{"Business", "Personal"}[i%2], i%50+1, []string{"Meeting", "", "Errand/Supplies"}[i%3])
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

type fixture struct {
	path   string
	loads  *int32
	cache  *Cache
	logger *storage.Logger
	router *gin.Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	path := filepath.Join(dir, "trips.csv")
	writeTrips(t, path, 30)

	logger, err := storage.NewLogger(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	var loads int32
	_, dcfg := config.Default()
	cache := NewCache(path, func() (*processor.Dataset, error) {
		atomic.AddInt32(&loads, 1)
		df, err := file.ReadDataset(path, file.Options{})
		if err != nil {
			return nil, err
		}
		return processor.Prepare(df, dcfg)
	})

	if opts.Chart.Width == 0 {
		opts.Chart = chart.DefaultOptions()
	}
	srv, err := NewServer(cache, logger, path, opts)
	require.NoError(t, err)

	return &fixture{path: path, loads: &loads, cache: cache, logger: logger, router: srv.Router()}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	f.router.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	f := newFixture(t, Options{ShowCode: true})

	w := f.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, pageTitle)
	assert.Contains(t, body, "Show Data Processing Code")
	assert.Contains(t, body, "func Prepare(")
	assert.Contains(t, body, `src="charts/category_purpose.png"`)
	assert.Contains(t, body, "Time of Day Distribution")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestIndexRequireRun(t *testing.T) {
	f := newFixture(t, Options{RequireRun: true})

	w := f.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Run Analysis")
	assert.NotContains(t, w.Body.String(), "charts/day_night.png")
	assert.NotContains(t, w.Body.String(), "Show Data Processing Code")
	assert.Equal(t, int32(0), atomic.LoadInt32(f.loads))

	w = f.do(http.MethodGet, "/?run=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "charts/day_night.png")
}

func TestChartRoute(t *testing.T) {
	f := newFixture(t, Options{})

	for _, target := range []string{"/charts/day_night.png", "/charts/day_night"} {
		w := f.do(http.MethodGet, target)
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		_, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
	}

	w := f.do(http.MethodGet, "/charts/pie.png")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 同一份数据只加载一次
	assert.Equal(t, int32(1), atomic.LoadInt32(f.loads))
}

func TestSummaryAndReload(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(http.MethodGet, "/api/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Metrics processor.Metrics     `json:"metrics"`
		Report  processor.CleanReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 30, resp.Metrics.Trips)
	assert.Equal(t, 10, resp.Report.FilledPurposes)

	w = f.do(http.MethodPost, "/api/reload")
	require.Equal(t, http.StatusOK, w.Code)
	f.do(http.MethodGet, "/api/summary")
	assert.Equal(t, int32(2), atomic.LoadInt32(f.loads))
}

func TestCacheReloadsWhenFileChanges(t *testing.T) {
	f := newFixture(t, Options{})

	ds, err := f.cache.Dataset()
	require.NoError(t, err)
	assert.Equal(t, 30, ds.Enriched.Nrow())

	writeTrips(t, f.path, 40)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(f.path, later, later))

	ds, err = f.cache.Dataset()
	require.NoError(t, err)
	assert.Equal(t, 40, ds.Enriched.Nrow())
	assert.Equal(t, int32(2), atomic.LoadInt32(f.loads))
}

func TestDataErrors(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, os.WriteFile(f.path, []byte("CATEGORY,MILES\nBusiness,3\n"), 0644))
	f.cache.Invalidate()

	w := f.do(http.MethodGet, "/api/summary")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "START_DATE")

	w = f.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "class=\"error\"")

	require.NoError(t, os.Remove(f.path))
	w = f.do(http.MethodGet, "/charts/day_night.png")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReports(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(http.MethodGet, "/report.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report.xlsx")

	w = f.do(http.MethodGet, "/report.pdf")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestHealthAndNoRoute(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = f.do(http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanicGoesToLog(t *testing.T) {
	f := newFixture(t, Options{})
	f.router.GET("/boom", func(*gin.Context) { panic("boom") })

	sub := f.logger.Subscribe()
	defer f.logger.Unsubscribe(sub)

	w := f.do(http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case entry := <-sub:
			if strings.Contains(entry, "ERROR:") && strings.Contains(entry, "boom") {
				return
			}
		case <-timeout:
			t.Fatal("panic not logged at ERROR level")
		}
	}
}

func TestLogsStream(t *testing.T) {
	f := newFixture(t, Options{})
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	// 响应头在第一条日志写出后才发送, 先开始写日志
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				f.logger.Info("stream check")
			}
		}
	}()

	resp, err := http.Get(ts.URL + "/logs")
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "INFO: stream check")
}
