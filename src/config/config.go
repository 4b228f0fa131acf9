package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config 应用程序配置(config.json)
type Config struct {
	DataFile   string `json:"data_file"`  // 行程数据文件(.csv/.xlsx)
	SheetName  string `json:"sheet_name"` // xlsx 数据所在工作表
	HeaderRow  int    `json:"header_row"` // xlsx 标题行(从0开始)
	Encoding   string `json:"encoding"`   // csv 文件编码: utf-8/gbk/latin1
	OutputDir  string `json:"output_dir"` // 图表输出目录
	DataDir    string `json:"data_dir"`   // 邮件附件保存目录
	LogName    string `json:"log_name"`
	LogMaxSize string `json:"log_max_size"` // 例如 "10 * 1024 * 1024"
	LogLevel   string `json:"log_level"`    // debug/info/warning/error
	LogStderr  bool   `json:"log_stderr"`   // 同时输出到标准错误

	Chart struct {
		Width  float64 `json:"width"`  // 厘米
		Height float64 `json:"height"` // 厘米
	} `json:"chart"`

	Report struct {
		Workbook bool `json:"workbook"` // 生成 report.xlsx
		PDF      bool `json:"pdf"`      // 生成 report.pdf
	} `json:"report"`

	Server struct {
		Addr       string `json:"addr"`
		GinMode    string `json:"gin_mode"`
		RequireRun bool   `json:"require_run"` // 页面需点击运行后才渲染图表
		ShowCode   bool   `json:"show_code"`   // 页面显示数据处理代码
	} `json:"server"`

	Schedule struct {
		Interval Duration `json:"interval"` // watch 模式运行间隔
	} `json:"schedule"`

	Email struct {
		Server        string   `json:"server"`         // IMAP 服务器地址
		Username      string   `json:"username"`       // 邮箱用户名
		Password      string   `json:"password"`       // 邮箱密码
		TargetSubject string   `json:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email"`

	SendEmail struct {
		Server   string   `json:"server"` // SMTP 服务器地址
		Username string   `json:"username"`
		Password string   `json:"password"`
		To       []string `json:"to"`
		Subject  string   `json:"subject"`
	} `json:"send_email"`

	Push struct {
		Webhook string `json:"webhook"` // 机器人 webhook, 为空则不推送
		Secret  string `json:"secret"`  // 加签密钥, 可为空
	} `json:"push"`
}

// DataConfig 数据配置(dataconfig.json): 列名映射与取值标签
type DataConfig struct {
	Columns         map[string]string `json:"columns"`
	PurposeSentinel string            `json:"purpose_sentinel"`
	TimeLayouts     []string          `json:"time_layouts"`
	MilesLimits     []float64         `json:"miles_limits"`
}

// 逻辑列名
const (
	ColStart     = "start_date"
	ColEnd       = "end_date"
	ColCategory  = "category"
	ColPurpose   = "purpose"
	ColMiles     = "miles"
	ColDate      = "date"
	ColHour      = "hour"
	ColTimeOfDay = "time_of_day"
	ColMonth     = "month"
	ColWeekday   = "weekday"
)

var defaultColumns = map[string]string{
	ColStart:     "START_DATE",
	ColEnd:       "END_DATE",
	ColCategory:  "CATEGORY",
	ColPurpose:   "PURPOSE",
	ColMiles:     "MILES",
	ColDate:      "date",
	ColHour:      "time",
	ColTimeOfDay: "day-night",
	ColMonth:     "MONTH",
	ColWeekday:   "DAY",
}

var defaultLayouts = []string{
	"1/2/2006 15:04",
	"01-02-2006 15:04",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	loadErr            error
	mu                 sync.RWMutex
)

// LoadConfig 加载配置(进程内只加载一次)
func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	once.Do(func() {
		instance, dataConfigInstance, loadErr = Load(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, loadErr
}

// Load 读取并解析两个配置文件, 不做缓存
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	dcfg.applyDefaults()
	return cfg, dcfg, nil
}

// Default 全默认配置
func Default() (*Config, *DataConfig) {
	cfg := &Config{}
	cfg.applyDefaults()
	dcfg := &DataConfig{}
	dcfg.applyDefaults()
	return cfg, dcfg
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.DataFile == "" {
		c.DataFile = "UberDataset.csv"
	}
	if c.SheetName == "" {
		c.SheetName = "Sheet1"
	}
	if c.Encoding == "" {
		c.Encoding = "utf-8"
	}
	if c.OutputDir == "" {
		c.OutputDir = "charts"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Chart.Width <= 0 {
		c.Chart.Width = 16
	}
	if c.Chart.Height <= 0 {
		c.Chart.Height = 8
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = Duration(time.Hour)
	}
	if c.Email.CheckInterval <= 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
	if c.SendEmail.Subject == "" {
		c.SendEmail.Subject = "Trip analysis charts"
	}
}

func (dc *DataConfig) applyDefaults() {
	if dc.Columns == nil {
		dc.Columns = make(map[string]string, len(defaultColumns))
	}
	for k, v := range defaultColumns {
		if dc.Columns[k] == "" {
			dc.Columns[k] = v
		}
	}
	if dc.PurposeSentinel == "" {
		dc.PurposeSentinel = "NOT"
	}
	if len(dc.TimeLayouts) == 0 {
		dc.TimeLayouts = append([]string(nil), defaultLayouts...)
	}
	if len(dc.MilesLimits) == 0 {
		dc.MilesLimits = []float64{100, 40}
	}
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Column 返回逻辑列对应的表头名
func (dc *DataConfig) Column(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	if col, ok := dc.Columns[name]; ok {
		return col
	}
	return defaultColumns[name]
}

// SetColumn 修改逻辑列对应的表头名
func (dc *DataConfig) SetColumn(name, header string) {
	mu.Lock()
	defer mu.Unlock()
	dc.Columns[name] = header
}
