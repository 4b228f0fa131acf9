// email_handler.go
package email

import (
	"TripAnalysis/src/datasource/file"
	"TripAnalysis/src/storage"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ====================== 邮件处理器实现 ======================

// DatasetAttachmentHandler 保存邮件中的行程数据附件(.csv/.xlsx)
type DatasetAttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	Options       file.Options    // 校验附件时的读取选项
	logger        *storage.Logger // 日志
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex    // 保护processedUIDs的读写锁
}

func NewDatasetAttachmentHandler(subject, dataDir string, opts file.Options, logger *storage.Logger) *DatasetAttachmentHandler {
	return &DatasetAttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		Options:       opts,
		logger:        logger,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *DatasetAttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *DatasetAttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// IsDataset 是否为可读取的数据文件
func IsDataset(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Handle 保存最后一个数据附件, 返回保存路径; 读不出表格的附件不会覆盖已有数据文件
func (h *DatasetAttachmentHandler) Handle(email *Email) (string, error) {
	if email == nil || h.IsProcessed(email.UID) {
		return "", nil
	}

	// 检查邮件主题是否包含目标关键词
	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.logger.Debug("跳过主题不匹配的邮件: " + email.Subject)
		return "", nil
	}

	h.logger.Info(fmt.Sprintf("处理邮件: %s 发件人: %s 日期: %s",
		email.Subject, email.From, email.Date.Format("2006-01-02 15:04:05")))

	attachment := LatestDataset(email)
	if attachment == nil {
		h.logger.Warning("目标邮件中没有数据附件: " + email.Subject)
		return "", nil
	}

	df, err := ReadAttachment(attachment, h.Options)
	if err != nil {
		return "", err
	}
	h.logger.Info(fmt.Sprintf("附件 %s 校验通过: %d 行 %d 列", attachment.Filename, df.Nrow(), df.Ncol()))

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// 只取文件名, 防止附件名带路径
	filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
	if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
		return "", fmt.Errorf("保存附件失败: %w", err)
	}
	h.logger.Info("附件已保存到: " + filePath)

	h.markAsProcessed(email.UID)
	return filePath, nil
}
