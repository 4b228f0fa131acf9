package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	logger.now = func() time.Time { return time.Date(2016, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(func() { _ = logger.Close() })
	return logger, path
}

func TestLoggerWritesFileAndMirror(t *testing.T) {
	logger, path := newTestLogger(t)
	var mirror bytes.Buffer
	logger.Mirror(&mirror)

	logger.Info("开始处理")
	logger.Error("失败")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2016-01-02 03:04:05] INFO: 开始处理\n[2016-01-02 03:04:05] ERROR: 失败\n", string(data))
	assert.Equal(t, string(data), mirror.String())
}

func TestLoggerSubscribe(t *testing.T) {
	logger, _ := newTestLogger(t)
	sub := logger.Subscribe()

	logger.Warning("hello")
	select {
	case msg := <-sub:
		assert.Contains(t, msg, "WARNING: hello")
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	logger.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok)

	// 取消订阅后继续写日志不应阻塞
	logger.Info("after")
}

func TestLoggerSubscriberFullDoesNotBlock(t *testing.T) {
	logger, _ := newTestLogger(t)
	_ = logger.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			logger.Debug("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logger blocked on a full subscriber")
	}
}

func TestCheckRotate(t *testing.T) {
	logger, path := newTestLogger(t)
	logger.Info(strings.Repeat("a", 64))

	rotated, err := logger.CheckRotate("1 * 1024")
	require.NoError(t, err)
	assert.False(t, rotated)

	rotated, err = logger.CheckRotate("2 * 8")
	require.NoError(t, err)
	assert.True(t, rotated)

	_, err = os.Stat(filepath.Join(filepath.Dir(path), "app.20160102030405.log"))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestReopen(t *testing.T) {
	logger, path := newTestLogger(t)
	require.NoError(t, os.Remove(path))
	require.NoError(t, logger.Reopen())
	logger.Info("again")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "again")
}

func TestWriter(t *testing.T) {
	logger, _ := newTestLogger(t)
	sub := logger.Subscribe()

	n, err := logger.Writer(INFO).Write([]byte("GET /health 200\n"))
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, "[2016-01-02 03:04:05] INFO: GET /health 200\n", <-sub)
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(512), eval("512"))
	assert.Equal(t, int64(0), eval("ten"))
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestSetLevel(t *testing.T) {
	logger, path := newTestLogger(t)
	level, err := ParseLevel("Warn")
	require.NoError(t, err)
	logger.SetLevel(level)

	logger.Debug("d")
	logger.Info("i")
	logger.Warning("w")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[2016-01-02 03:04:05] WARNING: w\n", string(data))

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, level)
}
