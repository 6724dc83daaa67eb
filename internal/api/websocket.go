// internal/api/websocket.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// GenerationProgressWebSocket 推送单次运行的进度更新
// 连接在运行结束（completed/failed）或客户端断开时关闭
func (h *Handler) GenerationProgressWebSocket(c *gin.Context) {
	runID := c.Param("id")

	tracker, exists := h.progressService.GetTracker(runID)
	if !exists {
		h.responses.NotFound(c, "进度跟踪器", runID)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("WebSocket升级失败", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
		return
	}
	defer conn.Close()

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	// 读协程只负责感知客户端断开
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
			if update.Status == "completed" || update.Status == "failed" {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, update.Status))
				return
			}
		case <-tracker.Done:
			// 运行已结束但最终更新可能仍在通道中，先尽量排空
			for {
				select {
				case update, ok := <-updates:
					if !ok {
						return
					}
					conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
					conn.WriteJSON(update)
				default:
					return
				}
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}
