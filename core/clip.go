package core

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// Clip 带名字和MIME类型的只读音频文件
type Clip struct {
	name     string
	mimeType string
	data     []byte
}

// NewClip 创建clip, 会复制data
func NewClip(name, mimeType string, data []byte) *Clip {
	return &Clip{
		name:     name,
		mimeType: mimeType,
		data:     bytes.Clone(data),
	}
}

func (c *Clip) Name() string     { return c.name }
func (c *Clip) MIMEType() string { return c.mimeType }
func (c *Clip) Size() int        { return len(c.data) }

// Bytes 返回底层数据, 调用方不得修改
func (c *Clip) Bytes() []byte { return c.data }

func (c *Clip) Reader() io.Reader { return bytes.NewReader(c.data) }

func (c *Clip) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.data)
	return int64(n), err
}

// Recording 停止录音后拼接得到的不可变结果
type Recording struct {
	clip      *Clip
	Duration  time.Duration
	Reason    StopReason
	CreatedAt time.Time
}

func (r *Recording) Clip() *Clip { return r.clip }

// DownloadName 下载时使用的文件名
func DownloadName(now time.Time, ext string) string {
	return fmt.Sprintf("recording-%d.%s", now.UnixMilli(), ext)
}
