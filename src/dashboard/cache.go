// cache.go
package dashboard

import (
	"TripAnalysis/src/processor"
	"fmt"
	"os"
	"sync"
	"time"
)

// Loader 读取并处理数据文件
type Loader func() (*processor.Dataset, error)

// Cache 以数据文件修改时间为键缓存处理结果和已绘制的图
type Cache struct {
	path string
	load Loader

	mu      sync.RWMutex
	modTime time.Time
	ds      *processor.Dataset
	pngs    map[string][]byte
}

func NewCache(path string, load Loader) *Cache {
	return &Cache{
		path: path,
		load: load,
		pngs: make(map[string][]byte),
	}
}

// Dataset 文件未变化时返回缓存, 否则重新加载(同一时间只加载一次)
func (c *Cache) Dataset() (*processor.Dataset, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("读取数据文件信息失败: %w", err)
	}

	c.mu.RLock()
	if c.ds != nil && c.modTime.Equal(info.ModTime()) {
		ds := c.ds
		c.mu.RUnlock()
		return ds, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ds != nil && c.modTime.Equal(info.ModTime()) {
		return c.ds, nil
	}

	ds, err := c.load()
	if err != nil {
		return nil, err
	}
	c.ds = ds
	c.modTime = info.ModTime()
	c.pngs = make(map[string][]byte)
	return ds, nil
}

// PNG 返回缓存的图, 没有时调用 render 并缓存
func (c *Cache) PNG(name string, ds *processor.Dataset, render func() ([]byte, error)) ([]byte, error) {
	c.mu.RLock()
	data, ok := c.pngs[name]
	current := c.ds == ds
	c.mu.RUnlock()
	if ok && current {
		return data, nil
	}

	data, err := render()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.ds == ds {
		c.pngs[name] = data
	}
	c.mu.Unlock()
	return data, nil
}

// Invalidate 丢弃缓存, 下次访问时重新加载
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ds = nil
	c.modTime = time.Time{}
	c.pngs = make(map[string][]byte)
}
