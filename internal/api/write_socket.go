// internal/api/write_socket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/amusedev/amuse/internal/errors"
	"github.com/amusedev/amuse/internal/models"
	"github.com/amusedev/amuse/internal/session"
	"github.com/amusedev/amuse/internal/utils"
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

// WriteSocketHandler 写作会话的WebSocket入口
// 每个连接持有一个独立的写作会话，连接断开时会话随之销毁
type WriteSocketHandler struct {
	Backend session.Backend
}

// NewWriteSocketHandler 创建写作会话处理器
func NewWriteSocketHandler(backend session.Backend) *WriteSocketHandler {
	return &WriteSocketHandler{Backend: backend}
}

// clientMessage 客户端发来的指令
type clientMessage struct {
	Type      string `json:"type"` // generate / set_input / set_auto / reload
	Content   string `json:"content,omitempty"`
	AutoMode  bool   `json:"autoMode,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// serverMessage 推送给客户端的事件
type serverMessage struct {
	Type      string      `json:"type"` // session_ready / scene_pending / scene_committed / level_up / generate_failed / scenes / error
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// writeSession 一条连接对应的写作会话
type writeSession struct {
	conn        *websocket.Conn
	coordinator *session.Coordinator
	outbound    chan *serverMessage
}

// HandleWrite 升级连接并进入写作会话循环
// 路由: GET /ws/novel/:id/write
func (h *WriteSocketHandler) HandleWrite(c *gin.Context) {
	novelID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warnf("WebSocket升级失败: %v", err)
		return
	}

	store := session.NewSceneStore(h.Backend, novelID)
	ws := &writeSession{
		conn:        conn,
		coordinator: session.NewCoordinator(store),
		outbound:    make(chan *serverMessage, 32),
	}

	ws.coordinator.OnLevelUp = func(tier models.Tier) {
		ws.push("level_up", tier, "")
	}
	ws.coordinator.OnFailure = func(message string) {
		ws.push("generate_failed", nil, message)
	}

	// 小说加载失败对会话是致命的，通知后直接关闭
	ctx := c.Request.Context()
	novel, err := store.LoadNovel(ctx)
	if err != nil {
		ws.writeDirect(&serverMessage{
			Type:      "error",
			Message:   "小说加载失败",
			Timestamp: time.Now(),
		})
		conn.Close()
		return
	}
	scenes, err := store.LoadScenes(ctx)
	if err != nil {
		ws.writeDirect(&serverMessage{
			Type:      "error",
			Message:   "场景加载失败",
			Timestamp: time.Now(),
		})
		conn.Close()
		return
	}

	ws.push("session_ready", gin.H{
		"novel":  novel,
		"scenes": scenes,
	}, "")

	go ws.writeLoop()
	ws.readLoop()
}

// push 投递事件，队列满时丢弃并记日志
func (ws *writeSession) push(msgType string, data interface{}, message string) {
	msg := &serverMessage{
		Type:      msgType,
		Data:      data,
		Message:   message,
		Timestamp: time.Now(),
	}

	select {
	case ws.outbound <- msg:
	default:
		utils.GetLogger().Warnf("会话事件队列已满，丢弃消息: %s", msgType)
	}
}

func (ws *writeSession) writeDirect(msg *serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ws.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	ws.conn.WriteMessage(websocket.TextMessage, data)
}

// writeLoop 排空队列后负责关闭连接
func (ws *writeSession) writeLoop() {
	for msg := range ws.outbound {
		ws.writeDirect(msg)
	}
	ws.conn.Close()
}

func (ws *writeSession) readLoop() {
	defer func() {
		// 断开连接时丢弃未结算的临时场景
		// 连接本身交给写循环在排空队列后关闭
		ws.coordinator.Teardown()
		close(ws.outbound)
	}()

	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			ws.push("error", nil, "消息格式无效")
			continue
		}

		ws.handleMessage(&msg)
	}
}

func (ws *writeSession) handleMessage(msg *clientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch msg.Type {
	case "set_input":
		ws.coordinator.SetInput(msg.Content)

	case "set_auto":
		ws.coordinator.SetAutoMode(msg.AutoMode)

	case "reload":
		scenes, err := ws.coordinator.Store().LoadScenes(ctx)
		if err != nil {
			ws.push("error", nil, "场景加载失败")
			return
		}
		ws.push("scenes", scenes, "")

	case "generate":
		if msg.Content != "" {
			ws.coordinator.SetInput(msg.Content)
		}

		// 手动模式下空白输入静默拒绝，不产生任何事件
		if !ws.coordinator.AutoMode() && strings.TrimSpace(ws.coordinator.Input()) == "" {
			return
		}

		ws.push("scene_pending", gin.H{
			"input": ws.coordinator.Input(),
		}, "")

		result, err := ws.coordinator.Generate(ctx)
		if err != nil {
			// 失败文案已由OnFailure回调推送，冲突单独提示
			if apperrors.IsInFlight(err) {
				ws.push("error", nil, "生成请求正在进行中")
			}
			return
		}
		if result == nil {
			return
		}

		ws.push("scene_committed", gin.H{
			"scene":             result.Scene(),
			"affinity":          result.Affinity,
			"affinityDelta":     result.AffinityDelta,
			"relationshipLevel": result.Relationship,
			"reason":            result.Reason,
		}, "")

	default:
		ws.push("error", nil, "未知的消息类型: "+msg.Type)
	}
}
