// server.go
package dashboard

import (
	"TripAnalysis/src/chart"
	"TripAnalysis/src/processor"
	"TripAnalysis/src/report"
	"TripAnalysis/src/storage"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

//go:embed templates/index.html
var templates embed.FS

const pageTitle = "Uber Rides Data Analysis Dashboard"

// Options 页面选项
type Options struct {
	RequireRun bool // 点击 Run Analysis 后才绘制
	ShowCode   bool // 显示数据处理代码
	Chart      chart.Options
}

// Server 仪表盘
type Server struct {
	cache  *Cache
	logger *storage.Logger
	opts   Options
	source string
	page   *template.Template
}

func NewServer(cache *Cache, logger *storage.Logger, source string, opts Options) (*Server, error) {
	page, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}
	return &Server{
		cache:  cache,
		logger: logger,
		opts:   opts,
		source: source,
		page:   page,
	}, nil
}

// Router 注册全部路由
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(s.logger), gin.RecoveryWithWriter(s.logger.Writer(storage.ERROR)))

	if err := r.SetTrustedProxies(nil); err != nil {
		s.logger.Warning("设置可信代理失败: " + err.Error())
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/", s.index)
	r.GET("/charts/:name", s.chartPNG)
	r.GET("/report.xlsx", s.workbook)
	r.GET("/report.pdf", s.pdf)
	r.GET("/logs", s.logs)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/summary", s.summary)
		api.POST("/reload", s.reload)
	}
	return r
}

type section struct {
	Name        string
	Title       string
	Description string
}

type pageData struct {
	Title     string
	ShowCode  bool
	Code      string
	Ran       bool
	Error     string
	Metrics   processor.Metrics
	Report    processor.CleanReport
	Sections  []section
	Generated string
}

func (s *Server) index(c *gin.Context) {
	data := pageData{
		Title:     pageTitle,
		ShowCode:  s.opts.ShowCode,
		Ran:       !s.opts.RequireRun || c.Query("run") == "1",
		Generated: time.Now().Format("2006-01-02 15:04:05"),
	}
	if data.ShowCode {
		data.Code = processor.PipelineSource()
	}

	status := http.StatusOK
	if data.Ran {
		ds, err := s.cache.Dataset()
		if err != nil {
			s.logger.Error("加载数据失败: " + err.Error())
			data.Error = err.Error()
			status = http.StatusInternalServerError
		} else {
			data.Metrics = processor.CalculateMetrics(ds)
			data.Report = ds.Report
			for _, f := range chart.Catalog(ds, s.opts.Chart) {
				data.Sections = append(data.Sections, section{Name: f.Name, Title: f.Title, Description: f.Description})
			}
		}
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) chartPNG(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("name"), ".png")

	ds, err := s.cache.Dataset()
	if err != nil {
		s.fail(c, err)
		return
	}
	f, ok := chart.Find(chart.Catalog(ds, s.opts.Chart), name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown chart: " + name})
		return
	}

	data, err := s.cache.PNG(name, ds, f.PNG)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) summary(c *gin.Context) {
	ds, err := s.cache.Dataset()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metrics": processor.CalculateMetrics(ds),
		"report":  ds.Report,
	})
}

func (s *Server) reload(c *gin.Context) {
	s.cache.Invalidate()
	s.logger.Info("数据缓存已清空")
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (s *Server) book(c *gin.Context) (*report.Book, bool) {
	ds, err := s.cache.Dataset()
	if err != nil {
		s.fail(c, err)
		return nil, false
	}

	var charts []report.Chart
	for _, f := range chart.Catalog(ds, s.opts.Chart) {
		data, err := s.cache.PNG(f.Name, ds, f.PNG)
		if errors.Is(err, chart.ErrNoData) {
			continue
		}
		if err != nil {
			s.fail(c, err)
			return nil, false
		}
		charts = append(charts, report.Chart{Name: f.Name, Title: f.Title, Description: f.Description, PNG: data})
	}
	return report.NewBook(pageTitle, uuid.NewString(), filepath.Base(s.source), ds, charts), true
}

func (s *Server) workbook(c *gin.Context) {
	b, ok := s.book(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, b); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="report.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (s *Server) pdf(c *gin.Context) {
	b, ok := s.book(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, b); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// logs 实时日志流
func (s *Server) logs(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)

	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return false
			}
			_, err := fmt.Fprint(w, msg)
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// fail 无数据 -> 404, 缺列/空数据/其他 -> 500
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, chart.ErrNoData) {
		status = http.StatusNotFound
	} else {
		s.logger.Error(err.Error())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
