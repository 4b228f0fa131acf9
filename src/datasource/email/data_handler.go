// data_handler.go
package email

import (
	"TripAnalysis/src/datasource/file"
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// ReadAttachment 直接把数据附件读成 DataFrame
func ReadAttachment(a *Attachment, opts file.Options) (dataframe.DataFrame, error) {
	if a == nil || !IsDataset(a.Filename) {
		return dataframe.DataFrame{}, fmt.Errorf("不是数据附件")
	}
	df, err := file.ReadBytes(a.Filename, a.Content, opts)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("读取附件 %s 失败: %w", a.Filename, err)
	}
	return df, nil
}

// LatestDataset 邮件中最后一个数据附件
func LatestDataset(e *Email) *Attachment {
	if e == nil {
		return nil
	}
	for i := len(e.Attachments) - 1; i >= 0; i-- {
		if IsDataset(e.Attachments[i].Filename) {
			return e.Attachments[i]
		}
	}
	return nil
}
