package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/82deutschmark/Disavowed/internal/models"
)

const (
	// Time allowed to write one message to the client.
	writeWait = 10 * time.Second
	// Time allowed for the client to send its turn request after connecting.
	requestWait = 30 * time.Second
	// Maximum size of the turn request message.
	maxRequestSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks happen at the gateway; the core accepts any origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream message types sent to the client.
const (
	streamTypeFragment = "fragment"
	streamTypeResult   = "result"
	streamTypeError    = "error"
)

// streamTurnRequest is the single message the client sends after connecting.
type streamTurnRequest struct {
	ChoiceID   uuid.UUID `json:"choiceId"`
	CustomText string    `json:"customText"`
}

// streamMessage is the envelope for every frame the server sends.
type streamMessage struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Mission  *models.Mission   `json:"mission,omitempty"`
	Node     *models.StoryNode `json:"node,omitempty"`
	Fallback bool              `json:"fallback,omitempty"`
	Status   int               `json:"status,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// streamTurn advances one turn over a WebSocket, forwarding narrative
// fragments as they are generated. The client connects, sends one turn
// request, receives fragment frames followed by a result frame, and the
// server closes the connection.
func (h *MissionHandler) streamTurn(c *gin.Context) {
	missionID, err := uuid.Parse(c.Param("mission_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "invalid mission_id format"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written its own error response.
		h.logger.Error("Failed to upgrade turn stream connection",
			zap.String("missionID", missionID.String()), zap.Error(err))
		return
	}
	defer conn.Close()

	logFields := []zap.Field{zap.String("missionID", missionID.String())}
	h.logger.Debug("Turn stream connected", logFields...)

	conn.SetReadLimit(maxRequestSize)
	_ = conn.SetReadDeadline(time.Now().Add(requestWait))

	var req streamTurnRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.logger.Debug("Turn stream request unreadable", append(logFields, zap.Error(err))...)
		h.writeStreamError(conn, http.StatusBadRequest, "invalid turn request")
		return
	}
	if req.ChoiceID == uuid.Nil {
		h.writeStreamError(conn, http.StatusBadRequest, "choiceId is required")
		return
	}

	// Fragments are forwarded from the generation callback. The generator
	// invokes the handler sequentially, so writes never interleave. A write
	// error is returned to the engine, which keeps the turn running; the
	// client simply stops receiving fragments.
	onFragment := func(fragment string) error {
		return h.writeStream(conn, streamMessage{Type: streamTypeFragment, Text: fragment})
	}

	result, err := h.service.AdvanceTurnStream(c.Request.Context(), missionID, req.ChoiceID, req.CustomText, onFragment)
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Turn stream failed", append(logFields, zap.Error(err))...)
		}
		h.writeStreamError(conn, status, message)
		return
	}

	if err := h.writeStream(conn, streamMessage{
		Type:     streamTypeResult,
		Mission:  result.Mission,
		Node:     result.Node,
		Fallback: result.Fallback,
	}); err != nil {
		// The turn is already committed; the client rereads it over HTTP.
		h.logger.Warn("Failed to deliver turn result over stream", append(logFields, zap.Error(err))...)
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	h.logger.Debug("Turn stream completed", logFields...)
}

func (h *MissionHandler) writeStream(conn *websocket.Conn, msg streamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func (h *MissionHandler) writeStreamError(conn *websocket.Conn, status int, message string) {
	_ = h.writeStream(conn, streamMessage{Type: streamTypeError, Status: status, Message: message})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
