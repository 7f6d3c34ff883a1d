// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"
)

// sseWriter 在处理器内同步写出 SSE 事件
type sseWriter struct {
	c       *gin.Context
	started bool
	index   int
}

func newSSEWriter(c *gin.Context) *sseWriter {
	return &sseWriter{c: c}
}

// start 写出 SSE 响应头，只执行一次
func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true
	w.c.Header("Content-Type", "text/event-stream")
	w.c.Header("Cache-Control", "no-cache")
	w.c.Header("Connection", "keep-alive")
	w.c.Header("X-Accel-Buffering", "no")
}

// Content 输出一个文本片段；客户端断开时返回错误以停止上游生成
func (w *sseWriter) Content(chunk string) error {
	if err := w.c.Request.Context().Err(); err != nil {
		return err
	}
	w.start()
	w.c.SSEvent("content", gin.H{
		"chunk": chunk,
		"index": w.index,
	})
	w.index++
	w.c.Writer.Flush()
	return nil
}

// Event 输出任意事件
func (w *sseWriter) Event(name string, data any) {
	w.start()
	w.c.SSEvent(name, data)
	w.c.Writer.Flush()
}

// Error 输出错误事件
func (w *sseWriter) Error(err error) {
	w.Event("error", gin.H{
		"message": err.Error(),
	})
}
