// protocols/websocket/transport.go
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lisuiheng/voxtape/pkg/interfaces"
)

var _ interfaces.TransportProtocol = (*WSProtocol)(nil)

type WSProtocol struct {
	conn      *websocket.Conn
	config    Config
	msgChan   chan interfaces.Message
	closeChan chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// Config 定义websocket特有的配置
type Config struct {
	URL         string
	AccessToken string
	ClientID    string
	ChunkSize   int
	MaxAttempts int
}

func NewWebSocketProtocol(config Config) (*WSProtocol, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: empty url", interfaces.ErrConnectionFailed)
	}
	return &WSProtocol{
		config:    config,
		msgChan:   make(chan interfaces.Message, 100),
		closeChan: make(chan struct{}),
	}, nil
}

func (p *WSProtocol) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	headers := http.Header{}
	if p.config.AccessToken != "" {
		headers.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.AccessToken))
	}
	if p.config.ClientID != "" {
		headers.Set("Client-Id", p.config.ClientID)
	}

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, p.config.URL, headers)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrConnectionFailed, err)
	}
	p.conn = conn

	go p.readPump(conn)
	return nil
}

func (p *WSProtocol) readPump(conn *websocket.Conn) {
	defer close(p.msgChan)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case p.msgChan <- interfaces.Message{Payload: data, Type: convertMsgType(msgType)}:
		case <-p.closeChan:
			return
		}
	}
}

func convertMsgType(wsType int) interfaces.MessageType {
	switch wsType {
	case websocket.TextMessage:
		return interfaces.MsgText
	case websocket.BinaryMessage:
		return interfaces.MsgBinary
	default:
		return interfaces.MsgControl
	}
}

func (p *WSProtocol) Send(data []byte, msgType interfaces.MessageType) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return interfaces.ErrConnectionFailed
	}

	wsType := websocket.TextMessage
	if msgType == interfaces.MsgBinary {
		wsType = websocket.BinaryMessage
	}
	return p.conn.WriteMessage(wsType, data)
}

func (p *WSProtocol) Receive() <-chan interfaces.Message {
	return p.msgChan
}

func (p *WSProtocol) ProtocolType() string { return "websocket" }

func (p *WSProtocol) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closeChan)
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.conn != nil {
			_ = p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			err = p.conn.Close()
		}
	})
	return err
}
