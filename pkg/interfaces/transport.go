// pkg/interfaces/transport.go
package interfaces

import (
	"context"
	"errors"
)

var (
	ErrConnectionFailed    = errors.New("connection failed")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrUploadRejected      = errors.New("upload rejected")
)

type TransportProtocol interface {
	Connect(ctx context.Context) error
	Send(data []byte, msgType MessageType) error
	Receive() <-chan Message
	Close() error
	ProtocolType() string
}

// Payload 交付给转写服务的音频文件
type Payload interface {
	Name() string
	MIMEType() string
	Bytes() []byte
}

type Message struct {
	Payload []byte
	Type    MessageType
}

type MessageType int

const (
	MsgText    MessageType = iota // JSON文本
	MsgBinary                     // 二进制数据（音频分块）
	MsgControl                    // 控制指令
)
