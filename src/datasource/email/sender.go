// sender.go
package email

import (
	"TripAnalysis/src/config"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	jemail "github.com/jordan-wright/email"
)

// ErrNoRecipients 没有配置收件人
var ErrNoRecipients = errors.New("未配置收件人")

// NewReportMessage 组装带图表附件的邮件, 不存在的附件直接报错
func NewReportMessage(c *config.Config, body string, files []string) (*jemail.Email, error) {
	if len(c.SendEmail.To) == 0 {
		return nil, ErrNoRecipients
	}

	e := jemail.NewEmail()
	e.From = fmt.Sprintf("Trip Analysis <%s>", c.SendEmail.Username)
	e.To = c.SendEmail.To
	e.Subject = c.SendEmail.Subject
	e.Text = []byte(body)

	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("附件文件不存在: %s", path)
		}
		if _, err := e.AttachFile(path); err != nil {
			return nil, fmt.Errorf("附件添加失败: %w", err)
		}
	}
	return e, nil
}

// smtpAddr 确保服务器地址包含端口, 默认 SSL 465
func smtpAddr(server string) (addr, host string) {
	addr = server
	if !strings.Contains(addr, ":") {
		addr += ":465"
	}
	return addr, strings.Split(addr, ":")[0]
}

// SendReport 通过 SMTP(显式 TLS) 发送分析结果
func SendReport(c *config.Config, body string, files []string) error {
	if c.SendEmail.Server == "" {
		return fmt.Errorf("未配置 SMTP 服务器")
	}
	e, err := NewReportMessage(c, body, files)
	if err != nil {
		return err
	}

	addr, host := smtpAddr(c.SendEmail.Server)
	err = e.SendWithTLS(
		addr,
		smtp.PlainAuth("", c.SendEmail.Username, c.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败: %w (Server: %s)", err, addr)
	}
	return nil
}
