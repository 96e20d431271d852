package source

import (
	"crypto/md5"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrWatcherStopped 监听器已停止
	ErrWatcherStopped = errors.New("watcher stopped")
)

// Source 配置来源
type Source interface {
	Read() (*ChangeSet, error)
	Write(*ChangeSet) error
	Watch() (Watcher, error)
	String() string
}

// ChangeSet 一次配置变更
type ChangeSet struct {
	Data      []byte
	Checksum  string
	Format    string
	Source    string
	Timestamp time.Time
}

// Watcher 监听配置变化
type Watcher interface {
	Next() (*ChangeSet, error)
	Stop() error
}

// Sum 计算变更集校验和
func (c *ChangeSet) Sum() string {
	h := md5.New()
	h.Write(c.Data)
	return fmt.Sprintf("%x", h.Sum(nil))
}
