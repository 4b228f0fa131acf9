package processor

import (
	"embed"
	"strings"
)

//go:embed data.go clean.go features.go encode.go
var pipelineFiles embed.FS

var pipelineOrder = []string{"data.go", "clean.go", "features.go", "encode.go"}

// PipelineSource 数据处理代码, 页面"显示代码"使用
func PipelineSource() string {
	var b strings.Builder
	for _, name := range pipelineOrder {
		data, err := pipelineFiles.ReadFile(name)
		if err != nil {
			continue
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String()
}
