package main

import (
	"TripAnalysis/src/datasource/email"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "定时运行, 数据文件更新或收到新邮件时重新出图",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			return a.watch(cmd.Context(), a.batchOptions(cmd))
		},
	}
	addBatchFlags(cmd)
	return cmd
}

// watcher 串行执行批处理, 两次运行不会重叠
type watcher struct {
	app     *app
	opts    batchOptions
	local   string // 被监控的本地数据文件
	current string // 最近一次更新的数据源, 本地文件或邮件附件
	mailbox email.MailService
	handler *email.DatasetAttachmentHandler
	mu      sync.Mutex
}

func newWatcher(a *app, opts batchOptions) *watcher {
	return &watcher{app: a, opts: opts, local: opts.Data, current: opts.Data}
}

// tick 先拉邮件, 有新附件时改用附件作为数据源
func (w *watcher) tick(ctx context.Context, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	w.app.logger.Info("触发运行: " + reason)

	if w.mailbox != nil {
		path, err := email.Pull(w.mailbox, w.handler.TargetSubject, w.handler, w.app.logger)
		if err != nil {
			w.app.logger.Error("检查处理邮件失败: " + err.Error())
		} else if path != "" {
			w.app.logger.Info("数据源切换为邮件附件: " + path)
			w.current = path
		}
	}
	w.run(ctx)
}

// localChanged 本地文件更新后改回本地数据源
func (w *watcher) localChanged(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	w.app.logger.Info("触发运行: 文件更新 " + w.local)
	w.current = w.local
	w.run(ctx)
}

// run 调用方持有 mu
func (w *watcher) run(ctx context.Context) {
	opts := w.opts
	opts.Data = w.current
	res, err := w.app.runBatch(ctx, opts)
	if err != nil {
		w.app.logger.Error(err.Error())
		return
	}
	w.app.deliver(res)
}

func (a *app) watch(ctx context.Context, opts batchOptions) error {
	w := newWatcher(a, opts)
	if a.cfg.Email.Server != "" {
		w.mailbox = email.NewEmailClient(a.cfg.Email.Server, a.cfg.Email.Username, a.cfg.Email.Password, a.logger)
		w.handler = email.NewDatasetAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir, a.readOptions(), a.logger)
	}

	interval := time.Duration(a.cfg.Schedule.Interval)
	if w.mailbox != nil && time.Duration(a.cfg.Email.CheckInterval) < interval {
		interval = time.Duration(a.cfg.Email.CheckInterval)
	}
	cronSpec := fmt.Sprintf("@every %s", interval)

	c := cron.New()
	if err := c.AddFunc(cronSpec, func() { w.tick(ctx, "定时 "+cronSpec) }); err != nil {
		return fmt.Errorf("创建定时任务失败: %w", err)
	}

	w.tick(ctx, "启动")
	c.Start()
	defer func() {
		c.Stop()
		// 等待进行中的运行结束
		w.mu.Lock()
		w.mu.Unlock()
	}()

	a.watchFile(ctx, w.local, func() { w.localChanged(ctx) })

	a.logger.Info(fmt.Sprintf("监控服务已启动(间隔: %v), 按Ctrl+C退出", interval))
	<-ctx.Done()
	a.logger.Info("监控服务已停止")
	return nil
}
