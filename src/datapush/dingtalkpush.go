package datapush

import (
	"TripAnalysis/src/processor"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// 常量定义
const (
	RETRY_TIMES    = 5
	RETRY_INTERVAL = 2 * time.Second
	HTTP_TIMEOUT   = 10 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Notifier 钉钉群机器人推送
type Notifier struct {
	webhook       string
	secret        string
	client        *http.Client
	RetryTimes    int
	RetryInterval time.Duration
}

func NewNotifier(webhook, secret string) *Notifier {
	return &Notifier{
		webhook:       webhook,
		secret:        secret,
		client:        &http.Client{Timeout: HTTP_TIMEOUT},
		RetryTimes:    RETRY_TIMES,
		RetryInterval: RETRY_INTERVAL,
	}
}

// Enabled 未配置 webhook 时不推送
func (n *Notifier) Enabled() bool {
	return n != nil && n.webhook != ""
}

// PushMarkdown 发送 markdown 消息, 失败按固定间隔重试
func (n *Notifier) PushMarkdown(title, text string) error {
	if !n.Enabled() {
		return nil
	}

	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(func() error {
		return n.send(payloadBytes)
	}, n.RetryTimes, n.RetryInterval)
}

func (n *Notifier) send(payload []byte) error {
	target := n.webhook
	if n.secret != "" {
		var err error
		target, err = signedURL(n.webhook, n.secret, time.Now().UnixMilli())
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("推送失败: HTTP %d", resp.StatusCode)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("推送失败: %s", result.ErrMsg)
	}
	return nil
}

// signedURL 加签: base64(hmac_sha256(secret, "timestamp\nsecret"))
func signedURL(webhook, secret string, timestamp int64) (string, error) {
	u, err := url.Parse(webhook)
	if err != nil {
		return "", fmt.Errorf("webhook 地址无效: %w", err)
	}
	ts := strconv.FormatInt(timestamp, 10)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "\n" + secret))
	sign := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := u.Query()
	q.Set("timestamp", ts)
	q.Set("sign", sign)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	if times < 1 {
		times = 1
	}
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}

// RunSummary 运行结果的 markdown 摘要
func RunSummary(runID, source string, m processor.Metrics, r processor.CleanReport, charts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Uber 行程分析完成\n\n")
	fmt.Fprintf(&b, "- 运行: %s\n", runID)
	fmt.Fprintf(&b, "- 数据: %s (%d 行读入, %d 行保留)\n", source, r.RawRows, r.Rows)
	fmt.Fprintf(&b, "- 里程: 合计 %.1f, 平均 %.2f, 最大 %.1f\n", m.TotalMiles, m.MeanMiles, m.MaxMiles)
	if m.TopPurpose != "" {
		fmt.Fprintf(&b, "- 最常见目的: %s\n", m.TopPurpose)
	}
	if m.BusiestTimeOfDay != "" {
		fmt.Fprintf(&b, "- 最忙时段: %s / %s\n", m.BusiestTimeOfDay, m.BusiestWeekday)
	}
	if len(charts) > 0 {
		fmt.Fprintf(&b, "- 图表: %s\n", strings.Join(charts, ", "))
	}
	return b.String()
}
