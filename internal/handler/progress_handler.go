package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"wordclass-go/internal/service"
	"wordclass-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

const progressWriteTimeout = 10 * time.Second

// ProgressHandler 通过 WebSocket 推送训练进度。
type ProgressHandler struct {
	hub *service.ProgressHub
}

// NewProgressHandler 创建一个新的 ProgressHandler。
func NewProgressHandler(hub *service.ProgressHub) *ProgressHandler {
	return &ProgressHandler{hub: hub}
}

// Handle 建立连接后先发送当前状态，然后持续转发进度事件，直到客户端断开。
func (h *ProgressHandler) Handle(status func() any) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error("WebSocket 升级失败", err)
			return
		}
		defer conn.Close()

		events, cancel := h.hub.Subscribe(64)
		defer cancel()

		if status != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
			if err := conn.WriteJSON(gin.H{"type": "status", "status": status()}); err != nil {
				log.Warnf("发送初始状态失败: %v", err)
				return
			}
		}

		// 读循环只用于感知客户端关闭
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					log.Warnf("推送训练进度失败: %v", err)
					return
				}
			case <-closed:
				log.Info("进度 WebSocket 连接已关闭")
				return
			}
		}
	}
}
