package main

import (
	"TripAnalysis/src/dashboard"
	"TripAnalysis/src/datasource/file"
	"TripAnalysis/src/processor"
	"TripAnalysis/src/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动分析仪表盘",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return a.serve(cmd.Context(), a.dataPath(cmd), addr)
		},
	}
	cmd.Flags().String("data", "", "数据文件(.csv/.xlsx), 默认取配置 data_file")
	cmd.Flags().String("addr", "", "监听地址, 默认取配置 server.addr")
	return cmd
}

func (a *app) serve(ctx context.Context, path, addr string) error {
	if a.cfg.Server.GinMode != "" {
		gin.SetMode(a.cfg.Server.GinMode)
	}
	gin.DefaultWriter = a.logger.Writer(storage.DEBUG)
	gin.DefaultErrorWriter = a.logger.Writer(storage.ERROR)

	cache := dashboard.NewCache(path, func() (*processor.Dataset, error) {
		return a.loadDataset(path)
	})
	srv, err := dashboard.NewServer(cache, a.logger, path, dashboard.Options{
		RequireRun: a.cfg.Server.RequireRun,
		ShowCode:   a.cfg.Server.ShowCode,
		Chart:      a.chartOptions(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.watchFile(ctx, path, func() {
		cache.Invalidate()
		a.logger.Info("数据文件已更新, 缓存失效: " + path)
	})

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(fmt.Sprintf("仪表盘已启动: http://%s", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("启动服务失败: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("正在关闭仪表盘...")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭服务失败: %w", err)
	}
	return nil
}

// watchFile 文件更新时回调; 监听失败只记录日志
func (a *app) watchFile(ctx context.Context, path string, onChange func()) {
	monitor, err := file.NewFileMonitor(path)
	if err != nil {
		a.logger.Warning("无法监听数据文件: " + err.Error())
		return
	}
	go func() {
		if err := monitor.Watch(ctx, func(string) { onChange() }); err != nil {
			a.logger.Error("文件监听出错: " + err.Error())
		}
	}()
}
