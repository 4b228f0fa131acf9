package main

import (
	"TripAnalysis/src/chart"
	"TripAnalysis/src/config"
	"TripAnalysis/src/datasource/file"
	"TripAnalysis/src/processor"
	"TripAnalysis/src/storage"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"
)

const (
	configFile     = "config.json"
	dataConfigFile = "dataconfig.json"
	reportTitle    = "Uber Rides Data Analysis"
)

// app 各子命令共用的配置和日志
type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	logger *storage.Logger
	stop   chan struct{}
}

func newApp(cmd *cobra.Command) (*app, error) {
	dir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return nil, err
	}
	cfg, dcfg, err := config.Load(dir, configFile, dataConfigFile)
	if err != nil {
		return nil, err
	}

	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	level, err := storage.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Close()
		return nil, err
	}
	logger.SetLevel(level)
	if cfg.LogStderr {
		logger.Mirror(cmd.ErrOrStderr())
	}
	if rotated, err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
		logger.Warning("日志轮转失败: " + err.Error())
	} else if rotated {
		logger.Info("日志文件已轮转")
	}

	a := &app{cfg: cfg, dcfg: dcfg, logger: logger, stop: make(chan struct{})}
	a.reopenOnHangup()
	return a, nil
}

// reopenOnHangup 收到 SIGHUP 时重新打开日志文件(配合 logrotate)
func (a *app) reopenOnHangup() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-a.stop:
				return
			case <-hup:
				if err := a.logger.Reopen(); err != nil {
					a.logger.Error("重新打开日志失败: " + err.Error())
					continue
				}
				a.logger.Info("日志文件已重新打开")
			}
		}
	}()
}

func (a *app) close() {
	close(a.stop)
	a.logger.Close()
}

func (a *app) readOptions() file.Options {
	return file.Options{
		Encoding:  a.cfg.Encoding,
		SheetName: a.cfg.SheetName,
		HeaderRow: a.cfg.HeaderRow,
	}
}

func (a *app) chartOptions() chart.Options {
	return chart.Options{
		Width:       vg.Length(a.cfg.Chart.Width) * vg.Centimeter,
		Height:      vg.Length(a.cfg.Chart.Height) * vg.Centimeter,
		MilesLimits: a.dcfg.MilesLimits,
	}
}

// loadDataset 读取并处理数据文件
func (a *app) loadDataset(path string) (*processor.Dataset, error) {
	df, err := file.ReadDataset(path, a.readOptions())
	if err != nil {
		return nil, err
	}
	ds, err := processor.Prepare(df, a.dcfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logger.Info(fmt.Sprintf("数据加载完成: %s, 读入 %d 行, 保留 %d 行", path, ds.Report.RawRows, ds.Report.Rows))
	return ds, nil
}

// dataPath 命令行 --data 优先, 否则使用配置
func (a *app) dataPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("data"); p != "" {
		return p
	}
	return a.cfg.DataFile
}
