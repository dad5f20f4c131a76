package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lisuiheng/voxtape/pkg/interfaces"
	"github.com/lisuiheng/voxtape/utils"
)

const defaultChunkSize = 32 * 1024

// UploadMessage 上传过程中的JSON控制消息
type UploadMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	MIME    string `json:"mime,omitempty"`
	Size    int    `json:"size,omitempty"`
	Message string `json:"message,omitempty"`
}

// Dialer 创建一个新的传输连接
type Dialer func() (interfaces.TransportProtocol, error)

// Uploader 把录音分块发送给转写服务并等待确认
type Uploader struct {
	config  Config
	dial    Dialer
	backoff utils.ReconnectStrategy
	logger  *slog.Logger
}

// NewUploader 使用websocket传输创建上传器
func NewUploader(config Config, logger *slog.Logger) *Uploader {
	return NewUploaderWithDialer(config, func() (interfaces.TransportProtocol, error) {
		return NewWebSocketProtocol(config)
	}, logger)
}

// NewUploaderWithDialer 自定义传输, 测试使用
func NewUploaderWithDialer(config Config, dial Dialer, logger *slog.Logger) *Uploader {
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	return &Uploader{
		config:  config,
		dial:    dial,
		backoff: utils.NewBackoff(500*time.Millisecond, 5*time.Second),
		logger:  logger,
	}
}

// SetBackoff 替换重连策略
func (u *Uploader) SetBackoff(b utils.ReconnectStrategy) {
	u.backoff = b
}

// Upload 发送payload, 返回上传ID
func (u *Uploader) Upload(ctx context.Context, p interfaces.Payload) (string, error) {
	transport, err := u.connect(ctx)
	if err != nil {
		return "", err
	}
	defer transport.Close()

	id := uuid.NewString()
	data := p.Bytes()
	start := UploadMessage{Type: "upload", ID: id, Name: p.Name(), MIME: p.MIMEType(), Size: len(data)}
	if err := u.sendJSON(transport, start); err != nil {
		return "", err
	}

	for off := 0; off < len(data); off += u.config.ChunkSize {
		end := min(off+u.config.ChunkSize, len(data))
		if err := transport.Send(data[off:end], interfaces.MsgBinary); err != nil {
			return "", fmt.Errorf("failed to send chunk: %w", err)
		}
	}

	if err := u.sendJSON(transport, UploadMessage{Type: "finish", ID: id}); err != nil {
		return "", err
	}

	if err := u.waitAck(ctx, transport, id); err != nil {
		return "", err
	}
	u.logger.Info("Recording uploaded", "id", id, "name", p.Name(), "size", len(data))
	return id, nil
}

func (u *Uploader) connect(ctx context.Context) (interfaces.TransportProtocol, error) {
	u.backoff.Reset()
	var lastErr error
	for attempt := 1; attempt <= u.config.MaxAttempts; attempt++ {
		transport, err := u.dial()
		if err != nil {
			return nil, err
		}
		if err = transport.Connect(ctx); err == nil {
			return transport, nil
		}
		transport.Close()
		lastErr = err
		u.logger.Warn("Upload connection failed", "attempt", attempt, "error", err)

		if attempt == u.config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(u.backoff.NextDelay()):
		}
	}
	return nil, lastErr
}

func (u *Uploader) sendJSON(t interfaces.TransportProtocol, msg UploadMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := t.Send(data, interfaces.MsgText); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	return nil
}

func (u *Uploader) waitAck(ctx context.Context, t interfaces.TransportProtocol, id string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-t.Receive():
			if !ok {
				return fmt.Errorf("%w: connection closed before ack", interfaces.ErrConnectionFailed)
			}
			if msg.Type != interfaces.MsgText {
				continue
			}
			var reply UploadMessage
			if err := json.Unmarshal(msg.Payload, &reply); err != nil {
				u.logger.Warn("Ignoring malformed reply", "error", err)
				continue
			}
			if reply.ID != "" && reply.ID != id {
				continue
			}
			switch reply.Type {
			case "ack":
				return nil
			case "error":
				return fmt.Errorf("%w: %s", interfaces.ErrUploadRejected, reply.Message)
			}
		}
	}
}
