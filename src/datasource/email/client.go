// client.go
package email

import (
	"TripAnalysis/src/storage"
	"bytes"
	"fmt"
	"io"
	"mime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	MaxFetchMessages = 100            // 单次最多取回的邮件数
	FetchBufferSize  = 10             // Fetch 通道缓冲
	DefaultWindow    = 24 * time.Hour // 只看这段时间内的未读邮件
	DefaultMailbox   = "INBOX"
)

// MailService 邮箱数据源
type MailService interface {
	Connect() error
	Disconnect()
	// FetchUnreadEmails 最近的未读邮件(含附件)
	FetchUnreadEmails() ([]*Email, error)
}

// EmailHandler 处理选中的邮件, 返回保存的数据文件路径(未保存时为空)
type EmailHandler interface {
	Handle(email *Email) (string, error)
}

// Email 解码后的邮件
type Email struct {
	UID         uint32
	Date        time.Time
	From        string
	Subject     string
	Attachments []*Attachment
}

// Attachment 附件名已解码
type Attachment struct {
	Filename string
	Content  []byte
}

// EmailClient IMAP 实现, 方法线程安全
type EmailClient struct {
	addr     string // host:port, TLS
	username string
	password string

	Mailbox string
	Window  time.Duration

	logger *storage.Logger

	mu   sync.Mutex
	conn *client.Client
}

// NewEmailClient addr 形如 "imap.qq.com:993"
func NewEmailClient(addr, username, password string, logger *storage.Logger) *EmailClient {
	return &EmailClient{
		addr:     addr,
		username: username,
		password: password,
		Mailbox:  DefaultMailbox,
		Window:   DefaultWindow,
		logger:   logger,
	}
}

// Connect 已有连接可用时直接复用
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		if _, err := s.conn.Capability(); err == nil {
			return nil
		}
		s.conn.Logout()
		s.conn = nil
	}

	c, err := client.DialTLS(s.addr, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}
	s.conn = c
	return nil
}

func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Logout()
		s.conn = nil
	}
}

func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, fmt.Errorf("未连接到邮件服务器")
	}
	if _, err := s.conn.Select(s.Mailbox, false); err != nil {
		return nil, fmt.Errorf("选择邮箱 %s 失败: %w", s.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-s.Window)

	ids, err := s.conn.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	// 取最新的一批
	if len(ids) > MaxFetchMessages {
		ids = ids[len(ids)-MaxFetchMessages:]
	}
	return s.fetch(ids)
}

func (s *EmailClient) fetch(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	for msg := range messages {
		e, err := readMessage(msg, section, s.logger)
		if err != nil {
			s.logger.Warning(fmt.Sprintf("解析邮件失败(UID:%d): %v", msg.Uid, err))
			continue
		}
		emails = append(emails, e)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}
	return emails, nil
}

// readMessage 解析头部和全部附件; 日期缺失时用信封日期
func readMessage(msg *imap.Message, section *imap.BodySectionName, logger *storage.Logger) (*Email, error) {
	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("邮件正文为空")
	}
	mr, err := mail.CreateReader(body)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}

	e := &Email{
		UID:     msg.Uid,
		From:    decodeHeader(mr.Header.Get("From")),
		Subject: decodeHeader(mr.Header.Get("Subject")),
	}
	if date, err := mr.Header.Date(); err == nil {
		e.Date = date
	} else if msg.Envelope != nil {
		e.Date = msg.Envelope.Date
	}

	e.Attachments = collectAttachments(mr, logger)
	return e, nil
}

// collectAttachments 读不出的部分记录日志后跳过
func collectAttachments(mr *mail.Reader, logger *storage.Logger) []*Attachment {
	var out []*Attachment
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return out
		}
		if err != nil {
			logger.Warning("读取邮件分段失败: " + err.Error())
			return out
		}
		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		name, err := h.Filename()
		if err != nil || name == "" {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, p.Body); err != nil {
			logger.Warning(fmt.Sprintf("读取附件 %s 失败: %v", name, err))
			continue
		}
		out = append(out, &Attachment{Filename: decodeHeader(name), Content: buf.Bytes()})
	}
}

// decodeHeader 解码 =?charset?encoding?text?=, 失败时原样返回
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader GBK/GB2312/GB18030 转 UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "gbk", "gb2312":
		return transform.NewReader(input, simplifiedchinese.GBK.NewDecoder()), nil
	case "gb18030":
		return transform.NewReader(input, simplifiedchinese.GB18030.NewDecoder()), nil
	default:
		return input, nil
	}
}

// CheckAndProcessEmails 连接邮箱, 返回主题含 keyword 的最新未读邮件(没有时为 nil)
func CheckAndProcessEmails(mailService MailService, keyword string, logger *storage.Logger) (*Email, error) {
	start := time.Now()
	logger.Info("开始检查邮箱...")

	if err := mailService.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer mailService.Disconnect()

	emails, err := mailService.FetchUnreadEmails()
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}
	if len(emails) == 0 {
		logger.Info("没有新邮件")
		return nil, nil
	}

	target := filterLatestTargetEmail(emails, keyword)
	if target == nil {
		logger.Info(fmt.Sprintf("%d 封未读邮件中没有目标邮件", len(emails)))
		return nil, nil
	}
	logger.Info(fmt.Sprintf("找到目标邮件: %s, 耗时: %v", target.Subject, time.Since(start)))
	return target, nil
}

// Pull 拉取最新目标邮件并交给 handler, 返回保存路径(没有新数据时为空)
func Pull(mailService MailService, keyword string, handler EmailHandler, logger *storage.Logger) (string, error) {
	target, err := CheckAndProcessEmails(mailService, keyword, logger)
	if err != nil || target == nil {
		return "", err
	}
	return handler.Handle(target)
}

func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var matched []*Email
	for _, e := range emails {
		if strings.Contains(e.Subject, keyword) {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})
	return matched[0]
}
