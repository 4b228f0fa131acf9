package main

import (
	"TripAnalysis/src/datasource/email"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoMailbox = errors.New("未配置邮箱服务器(email.server)")

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "从邮箱拉取最新的行程数据附件",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Email.Server == "" {
				return errNoMailbox
			}
			client := email.NewEmailClient(a.cfg.Email.Server, a.cfg.Email.Username, a.cfg.Email.Password, a.logger)
			handler := email.NewDatasetAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir, a.readOptions(), a.logger)

			path, err := email.Pull(client, a.cfg.Email.TargetSubject, handler, a.logger)
			if err != nil {
				a.logger.Error("检查处理邮件失败: " + err.Error())
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "没有新的数据附件")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
