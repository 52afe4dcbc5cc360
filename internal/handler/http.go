package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

// MissionHandler exposes the mission engine over HTTP.
type MissionHandler struct {
	service interfaces.MissionService
	logger  *zap.Logger
}

// NewMissionHandler creates the HTTP handler for the mission engine.
func NewMissionHandler(service interfaces.MissionService, logger *zap.Logger) *MissionHandler {
	return &MissionHandler{
		service: service,
		logger:  logger.Named("MissionHandler"),
	}
}

// RegisterRoutes registers the player-facing routes.
func (h *MissionHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		players := api.Group("/players/:player_id")
		{
			players.POST("/missions", h.bootstrapMission)
			players.GET("/missions", h.listMissions)
			players.GET("/balances", h.getBalances)
			players.GET("/transactions", h.listTransactions)
		}

		missions := api.Group("/missions/:mission_id")
		{
			missions.GET("", h.getMission)
			missions.POST("/turns", h.advanceTurn)
			missions.GET("/nodes/:node_id", h.getNode)
			missions.POST("/abandon", h.abandonMission)
		}
	}

	router.GET("/ws/missions/:mission_id/turns", h.streamTurn)
}

// errorStatus maps a service error to its HTTP status and caller message.
// Shared by the JSON error responder and the WebSocket error frame.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidSelection),
		errors.Is(err, models.ErrEmptyCustomText),
		errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, models.ErrMissionNotActive):
		return http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrMissionNotFound),
		errors.Is(err, models.ErrNodeNotFound),
		errors.Is(err, models.ErrChoiceNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, "temporary storage failure, retry the request"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func handleServiceError(c *gin.Context, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Unhandled service error", zap.Error(err))
	}
	c.AbortWithStatusJSON(status, APIError{Message: message})
}

// idParam parses a UUID path parameter, responding 400 on malformed input.
func (h *MissionHandler) idParam(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.Warn("Invalid id parameter", zap.String("param", name), zap.String("value", raw))
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "invalid " + name + " format"})
		return uuid.Nil, false
	}
	return id, true
}

type bootstrapMissionRequest struct {
	Selections     []models.CharacterSelection `json:"selections" binding:"required"`
	NarrativeStyle string                      `json:"narrativeStyle"`
	Mood           string                      `json:"mood"`
}

type advanceTurnRequest struct {
	ChoiceID   uuid.UUID `json:"choiceId" binding:"required"`
	CustomText string    `json:"customText"`
}

// missionResponse pairs a mission with one of its nodes, usually the cursor.
type missionResponse struct {
	Mission *models.Mission   `json:"mission"`
	Node    *models.StoryNode `json:"node,omitempty"`
}

type balancesResponse struct {
	PlayerID uuid.UUID                 `json:"playerId"`
	Balances map[models.Currency]int64 `json:"balances"`
}

type transactionsResponse struct {
	PlayerID     uuid.UUID             `json:"playerId"`
	Transactions []*models.Transaction `json:"transactions"`
}

type missionListResponse struct {
	PlayerID uuid.UUID         `json:"playerId"`
	Missions []*models.Mission `json:"missions"`
}

// limitQuery parses the optional 'limit' query parameter, responding 400 on
// junk. The parsed value is capped at 100.
func (h *MissionHandler) limitQuery(c *gin.Context, fallback int) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 {
		h.logger.Warn("Invalid limit parameter", zap.String("limit", limitStr))
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "invalid 'limit' parameter"})
		return 0, false
	}
	if parsed > 100 {
		parsed = 100
	}
	return parsed, true
}

func (h *MissionHandler) bootstrapMission(c *gin.Context) {
	playerID, ok := h.idParam(c, "player_id")
	if !ok {
		return
	}

	var req bootstrapMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid bootstrap request body",
			zap.String("playerID", playerID.String()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	overrides := models.StyleOverrides{NarrativeStyle: req.NarrativeStyle, Mood: req.Mood}
	mission, err := h.service.BootstrapMission(c.Request.Context(), playerID, req.Selections, overrides)
	if err != nil {
		if !errors.Is(err, models.ErrInvalidSelection) {
			h.logger.Error("Error bootstrapping mission",
				zap.String("playerID", playerID.String()), zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	// Load the root node so the caller can render the opening beat without a
	// second round trip.
	_, node, err := h.service.GetMission(c.Request.Context(), mission.ID)
	if err != nil {
		h.logger.Error("Mission created but root node read failed",
			zap.String("missionID", mission.ID.String()), zap.Error(err))
		c.JSON(http.StatusCreated, missionResponse{Mission: mission})
		return
	}

	c.JSON(http.StatusCreated, missionResponse{Mission: mission, Node: node})
}

func (h *MissionHandler) advanceTurn(c *gin.Context) {
	missionID, ok := h.idParam(c, "mission_id")
	if !ok {
		return
	}

	var req advanceTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid turn request body",
			zap.String("missionID", missionID.String()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.AdvanceTurn(c.Request.Context(), missionID, req.ChoiceID, req.CustomText)
	if err != nil {
		if errors.Is(err, models.ErrPersistenceFailure) || errors.Is(err, models.ErrInternalServer) {
			h.logger.Error("Error advancing turn",
				zap.String("missionID", missionID.String()),
				zap.String("choiceID", req.ChoiceID.String()),
				zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *MissionHandler) getMission(c *gin.Context) {
	missionID, ok := h.idParam(c, "mission_id")
	if !ok {
		return
	}

	mission, node, err := h.service.GetMission(c.Request.Context(), missionID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrMissionNotFound) {
			h.logger.Error("Error getting mission",
				zap.String("missionID", missionID.String()), zap.Error(err))
		}
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, missionResponse{Mission: mission, Node: node})
}

func (h *MissionHandler) getNode(c *gin.Context) {
	missionID, ok := h.idParam(c, "mission_id")
	if !ok {
		return
	}
	nodeID, ok := h.idParam(c, "node_id")
	if !ok {
		return
	}

	node, err := h.service.GetNode(c.Request.Context(), missionID, nodeID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, node)
}

func (h *MissionHandler) abandonMission(c *gin.Context) {
	missionID, ok := h.idParam(c, "mission_id")
	if !ok {
		return
	}

	if err := h.service.AbandonMission(c.Request.Context(), missionID); err != nil {
		handleServiceError(c, err)
		return
	}

	h.logger.Info("Mission abandoned via API", zap.String("missionID", missionID.String()))
	c.Status(http.StatusNoContent)
}

func (h *MissionHandler) getBalances(c *gin.Context) {
	playerID, ok := h.idParam(c, "player_id")
	if !ok {
		return
	}

	balances, err := h.service.Balances(c.Request.Context(), playerID)
	if err != nil {
		h.logger.Error("Error getting balances",
			zap.String("playerID", playerID.String()), zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, balancesResponse{PlayerID: playerID, Balances: balances})
}

func (h *MissionHandler) listMissions(c *gin.Context) {
	playerID, ok := h.idParam(c, "player_id")
	if !ok {
		return
	}
	limit, ok := h.limitQuery(c, 20)
	if !ok {
		return
	}

	missions, err := h.service.ListMissions(c.Request.Context(), playerID, limit)
	if err != nil {
		h.logger.Error("Error listing missions",
			zap.String("playerID", playerID.String()), zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, missionListResponse{PlayerID: playerID, Missions: missions})
}

func (h *MissionHandler) listTransactions(c *gin.Context) {
	playerID, ok := h.idParam(c, "player_id")
	if !ok {
		return
	}
	limit, ok := h.limitQuery(c, 50)
	if !ok {
		return
	}

	transactions, err := h.service.History(c.Request.Context(), playerID, limit)
	if err != nil {
		h.logger.Error("Error listing transactions",
			zap.String("playerID", playerID.String()), zap.Error(err))
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactionsResponse{PlayerID: playerID, Transactions: transactions})
}
