package main

import (
	"TripAnalysis/src/chart"
	"TripAnalysis/src/datapush"
	"TripAnalysis/src/datasource/email"
	"TripAnalysis/src/processor"
	"TripAnalysis/src/report"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// batchOptions 一次批处理的输入输出
type batchOptions struct {
	Data     string
	Out      string
	Workbook bool
	PDF      bool
	Progress io.Writer
}

// batchResult 批处理结果
type batchResult struct {
	RunID   string
	Source  string
	Files   []string // 图表 PNG
	Reports []string // report.xlsx / report.pdf
	Skipped []string
	Metrics processor.Metrics
	Report  processor.CleanReport
	Elapsed time.Duration
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "清洗数据并输出全部图表",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.runBatch(cmd.Context(), a.batchOptions(cmd))
			if err != nil {
				a.logger.Error(err.Error())
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(res))
			a.deliver(res)
			return nil
		},
	}
	addBatchFlags(cmd)
	return cmd
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("data", "", "数据文件(.csv/.xlsx), 默认取配置 data_file")
	cmd.Flags().String("out", "", "图表输出目录, 默认取配置 output_dir")
	cmd.Flags().Bool("xlsx", false, "同时生成 report.xlsx")
	cmd.Flags().Bool("pdf", false, "同时生成 report.pdf")
}

// batchOptions 命令行参数覆盖配置
func (a *app) batchOptions(cmd *cobra.Command) batchOptions {
	opts := batchOptions{
		Data:     a.dataPath(cmd),
		Out:      a.cfg.OutputDir,
		Workbook: a.cfg.Report.Workbook,
		PDF:      a.cfg.Report.PDF,
		Progress: cmd.ErrOrStderr(),
	}
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		opts.Out = out
	}
	if cmd.Flags().Changed("xlsx") {
		opts.Workbook, _ = cmd.Flags().GetBool("xlsx")
	}
	if cmd.Flags().Changed("pdf") {
		opts.PDF, _ = cmd.Flags().GetBool("pdf")
	}
	return opts
}

// runBatch 读取 -> 清洗 -> 绘图 -> 保存
func (a *app) runBatch(ctx context.Context, opts batchOptions) (*batchResult, error) {
	start := time.Now()
	res := &batchResult{RunID: uuid.NewString(), Source: opts.Data}
	a.logger.Info(fmt.Sprintf("开始运行 run_id=%s data=%s", res.RunID, opts.Data))

	ds, err := a.loadDataset(opts.Data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	figures := chart.Catalog(ds, a.chartOptions())
	bar := newProgressBar(opts.Progress, len(figures))
	charts, skipped, err := report.Render(figures, func(name string) {
		bar.Describe(name)
		if err := bar.Add(1); err != nil {
			a.logger.Debug("进度条更新失败: " + err.Error())
		}
	})
	if err != nil {
		return nil, err
	}
	for _, name := range skipped {
		a.logger.Warning("没有可绘制的数据, 跳过: " + name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := report.SavePNG(opts.Out, charts)
	if err != nil {
		return nil, err
	}

	book := report.NewBook(reportTitle, res.RunID, filepath.Base(opts.Data), ds, charts)
	if opts.Workbook {
		path := filepath.Join(opts.Out, "report.xlsx")
		if err := report.SaveWorkbook(path, book); err != nil {
			return nil, err
		}
		res.Reports = append(res.Reports, path)
	}
	if opts.PDF {
		path := filepath.Join(opts.Out, "report.pdf")
		if err := report.SavePDF(path, book); err != nil {
			return nil, err
		}
		res.Reports = append(res.Reports, path)
	}

	res.Files = files
	res.Skipped = skipped
	res.Metrics = book.Metrics
	res.Report = book.Report
	res.Elapsed = time.Since(start)
	a.logger.Info(fmt.Sprintf("运行完成 run_id=%s 图表 %d 张, 耗时 %v", res.RunID, len(files), res.Elapsed))
	return res, nil
}

func newProgressBar(w io.Writer, n int) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("[cyan]rendering charts[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// deliver 推送和邮件, 失败只记录日志
func (a *app) deliver(res *batchResult) {
	names := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		names = append(names, strings.TrimSuffix(filepath.Base(f), ".png"))
	}
	summary := datapush.RunSummary(res.RunID, filepath.Base(res.Source), res.Metrics, res.Report, names)

	notifier := datapush.NewNotifier(a.cfg.Push.Webhook, a.cfg.Push.Secret)
	if notifier.Enabled() {
		if err := notifier.PushMarkdown("Uber 行程分析", summary); err != nil {
			a.logger.Warning("推送失败: " + err.Error())
		} else {
			a.logger.Info("推送成功 run_id=" + res.RunID)
		}
	}

	if a.cfg.SendEmail.Server != "" && len(a.cfg.SendEmail.To) > 0 {
		attachments := append(append([]string(nil), res.Files...), res.Reports...)
		if err := email.SendReport(a.cfg, summary, attachments); err != nil {
			a.logger.Warning(err.Error())
		} else {
			a.logger.Info("分析结果已发送: " + strings.Join(a.cfg.SendEmail.To, ","))
		}
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(18)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func renderSummary(res *batchResult) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
	}
	m, r := res.Metrics, res.Report

	lines := []string{
		headerStyle.Render(reportTitle),
		row("run", res.RunID),
		row("rows", fmt.Sprintf("%d read, %d kept", r.RawRows, r.Rows)),
		row("filled purpose", fmt.Sprintf("%d", r.FilledPurposes)),
		row("dropped", fmt.Sprintf("%d missing, %d duplicate", r.DroppedMissing, r.DroppedDuplicates)),
		row("miles", fmt.Sprintf("total %.1f, mean %.2f, max %.1f", m.TotalMiles, m.MeanMiles, m.MaxMiles)),
		row("busiest", strings.TrimSpace(m.BusiestTimeOfDay+" "+m.BusiestWeekday)),
		row("charts", fmt.Sprintf("%d written", len(res.Files))),
	}
	for _, p := range res.Reports {
		lines = append(lines, row("report", p))
	}
	if len(res.Skipped) > 0 {
		lines = append(lines, warnStyle.Render("skipped: "+strings.Join(res.Skipped, ", ")))
	}
	lines = append(lines, row("elapsed", res.Elapsed.Round(time.Millisecond).String()))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
