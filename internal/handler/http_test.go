package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/82deutschmark/Disavowed/internal/handler"
	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/mocks"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter() (*gin.Engine, *mocks.MissionService) {
	gin.SetMode(gin.TestMode)
	svc := new(mocks.MissionService)
	router := gin.New()
	handler.NewMissionHandler(svc, zap.NewNop()).RegisterRoutes(router)
	return router, svc
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleMission(playerID uuid.UUID) *models.Mission {
	rootID := uuid.New()
	return &models.Mission{
		ID:             uuid.New(),
		PlayerID:       playerID,
		Title:          "Operation Glass Harbor",
		Objective:      "Recover the ledger",
		NarrativeStyle: models.DefaultNarrativeStyle,
		Mood:           models.DefaultMood,
		RewardCurrency: models.CurrencyDiamonds,
		RewardAmount:   3,
		RootNodeID:     rootID,
		CurrentNodeID:  rootID,
		Status:         models.MissionStatusActive,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func sampleNode(mission *models.Mission) *models.StoryNode {
	return &models.StoryNode{
		ID:            mission.CurrentNodeID,
		MissionID:     mission.ID,
		NarrativeText: "Rain hammers the container stacks.",
		Tags:          []string{},
		Choices: []models.StoryChoice{
			{ID: uuid.New(), Text: "Meet the foreman", Tier: models.TierLow,
				Cost: models.CostTuple{models.CurrencyDollars: 5}, Position: 0},
			{ID: uuid.New(), Text: "", Tier: models.TierCustom,
				Cost: models.CostTuple{}, Position: 1},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestBootstrapMissionEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	playerID := uuid.New()
	mission := sampleMission(playerID)
	node := sampleNode(mission)

	svc.On("BootstrapMission", mock.Anything, playerID, mock.Anything, models.StyleOverrides{Mood: "Grim"}).
		Return(mission, nil)
	svc.On("GetMission", mock.Anything, mission.ID).Return(mission, node, nil)

	body := map[string]any{
		"selections": []map[string]string{
			{"characterId": uuid.NewString(), "role": "mission_giver"},
			{"characterId": uuid.NewString(), "role": "villain"},
		},
		"mood": "Grim",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/players/"+playerID.String()+"/missions", body)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Mission *models.Mission   `json:"mission"`
		Node    *models.StoryNode `json:"node"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, mission.ID, resp.Mission.ID)
	require.NotNil(t, resp.Node)
	assert.Equal(t, node.ID, resp.Node.ID)
	assert.Len(t, resp.Node.Choices, 2)
	svc.AssertExpectations(t)
}

func TestBootstrapMissionEndpoint_MalformedBody(t *testing.T) {
	router, svc := newTestRouter()
	playerID := uuid.New()

	req := httptest.NewRequest(http.MethodPost,
		"/api/players/"+playerID.String()+"/missions", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "BootstrapMission", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBootstrapMissionEndpoint_InvalidSelection(t *testing.T) {
	router, svc := newTestRouter()
	playerID := uuid.New()

	svc.On("BootstrapMission", mock.Anything, playerID, mock.Anything, mock.Anything).
		Return(nil, models.ErrInvalidSelection)

	body := map[string]any{
		"selections": []map[string]string{
			{"characterId": uuid.NewString(), "role": "villain"},
			{"characterId": uuid.NewString(), "role": "villain"},
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/api/players/"+playerID.String()+"/missions", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBootstrapMissionEndpoint_InvalidPlayerID(t *testing.T) {
	router, svc := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/players/not-a-uuid/missions", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "BootstrapMission", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvanceTurnEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	mission := sampleMission(uuid.New())
	node := sampleNode(mission)
	choiceID := node.Choices[0].ID

	svc.On("AdvanceTurn", mock.Anything, mission.ID, choiceID, "").
		Return(&interfaces.TurnResult{Mission: mission, Node: node}, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/missions/"+mission.ID.String()+"/turns",
		map[string]string{"choiceId": choiceID.String()})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result interfaces.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, mission.ID, result.Mission.ID)
	assert.Equal(t, node.ID, result.Node.ID)
	assert.False(t, result.Fallback)
}

func TestAdvanceTurnEndpoint_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"insufficient funds", models.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"mission not active", models.ErrMissionNotActive, http.StatusConflict},
		{"unknown choice", models.ErrChoiceNotFound, http.StatusNotFound},
		{"empty custom text", models.ErrEmptyCustomText, http.StatusBadRequest},
		{"persistence failure", models.ErrPersistenceFailure, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, svc := newTestRouter()
			missionID := uuid.New()
			choiceID := uuid.New()

			svc.On("AdvanceTurn", mock.Anything, missionID, choiceID, mock.Anything).
				Return(nil, tc.err)

			rec := doJSON(t, router, http.MethodPost, "/api/missions/"+missionID.String()+"/turns",
				map[string]string{"choiceId": choiceID.String(), "customText": "improvise"})

			assert.Equal(t, tc.status, rec.Code)
			var apiErr handler.APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestAdvanceTurnEndpoint_MissingChoiceID(t *testing.T) {
	router, svc := newTestRouter()
	missionID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/api/missions/"+missionID.String()+"/turns",
		map[string]string{"customText": "improvise"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "AdvanceTurn", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMissionEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	mission := sampleMission(uuid.New())
	node := sampleNode(mission)

	svc.On("GetMission", mock.Anything, mission.ID).Return(mission, node, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/missions/"+mission.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Mission *models.Mission   `json:"mission"`
		Node    *models.StoryNode `json:"node"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, mission.ID, resp.Mission.ID)
	assert.Equal(t, node.ID, resp.Node.ID)
}

func TestGetMissionEndpoint_NotFound(t *testing.T) {
	router, svc := newTestRouter()
	missionID := uuid.New()

	svc.On("GetMission", mock.Anything, missionID).Return(nil, nil, models.ErrMissionNotFound)

	rec := doJSON(t, router, http.MethodGet, "/api/missions/"+missionID.String(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetNodeEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	mission := sampleMission(uuid.New())
	node := sampleNode(mission)

	svc.On("GetNode", mock.Anything, mission.ID, node.ID).Return(node, nil)

	rec := doJSON(t, router, http.MethodGet,
		"/api/missions/"+mission.ID.String()+"/nodes/"+node.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.StoryNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, node.ID, got.ID)
}

func TestAbandonMissionEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	missionID := uuid.New()

	svc.On("AbandonMission", mock.Anything, missionID).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/api/missions/"+missionID.String()+"/abandon", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestBalancesEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	playerID := uuid.New()
	balances := map[models.Currency]int64{
		models.CurrencyDiamonds: 49,
		models.CurrencyDollars:  35,
	}

	svc.On("Balances", mock.Anything, playerID).Return(balances, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/players/"+playerID.String()+"/balances", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		PlayerID uuid.UUID                 `json:"playerId"`
		Balances map[models.Currency]int64 `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, playerID, resp.PlayerID)
	assert.Equal(t, balances, resp.Balances)
}

func TestListMissionsEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	playerID := uuid.New()
	first := sampleMission(playerID)
	second := sampleMission(playerID)
	second.Status = models.MissionStatusCompleted

	svc.On("ListMissions", mock.Anything, playerID, 20).
		Return([]*models.Mission{second, first}, nil)

	rec := doJSON(t, router, http.MethodGet,
		"/api/players/"+playerID.String()+"/missions", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		PlayerID uuid.UUID         `json:"playerId"`
		Missions []*models.Mission `json:"missions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, playerID, resp.PlayerID)
	require.Len(t, resp.Missions, 2)
	assert.Equal(t, second.ID, resp.Missions[0].ID)
	assert.Equal(t, models.MissionStatusCompleted, resp.Missions[0].Status)
	svc.AssertExpectations(t)
}

func TestTransactionsEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	playerID := uuid.New()
	transactions := []*models.Transaction{
		{ID: uuid.New(), PlayerID: playerID, Currency: models.CurrencyDiamonds,
			Amount: -1, Reason: models.ReasonChoiceSpend, CreatedAt: time.Now().UTC()},
	}

	svc.On("History", mock.Anything, playerID, 5).Return(transactions, nil)

	rec := doJSON(t, router, http.MethodGet,
		"/api/players/"+playerID.String()+"/transactions?limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Transactions []*models.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Transactions, 1)
	assert.EqualValues(t, -1, resp.Transactions[0].Amount)
	svc.AssertExpectations(t)
}

func TestTransactionsEndpoint_InvalidLimit(t *testing.T) {
	router, svc := newTestRouter()
	playerID := uuid.New()

	rec := doJSON(t, router, http.MethodGet,
		"/api/players/"+playerID.String()+"/transactions?limit=zero", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
}

func TestStreamTurnEndpoint(t *testing.T) {
	router, svc := newTestRouter()
	mission := sampleMission(uuid.New())
	node := sampleNode(mission)
	choiceID := node.Choices[0].ID

	svc.On("AdvanceTurnStream", mock.Anything, mission.ID, choiceID, "", mock.Anything).
		Run(func(args mock.Arguments) {
			// Runs on the server goroutine, so no require here.
			onFragment := args.Get(4).(interfaces.FragmentHandler)
			assert.NoError(t, onFragment("The lock "))
			assert.NoError(t, onFragment("gives way."))
		}).
		Return(&interfaces.TurnResult{Mission: mission, Node: node, Fallback: false}, nil)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/missions/" + mission.ID.String() + "/turns"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"choiceId": choiceID.String()}))

	var frame struct {
		Type    string            `json:"type"`
		Text    string            `json:"text"`
		Mission *models.Mission   `json:"mission"`
		Node    *models.StoryNode `json:"node"`
	}

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "fragment", frame.Type)
	assert.Equal(t, "The lock ", frame.Text)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "fragment", frame.Type)
	assert.Equal(t, "gives way.", frame.Text)

	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "result", frame.Type)
	require.NotNil(t, frame.Mission)
	assert.Equal(t, mission.ID, frame.Mission.ID)
	require.NotNil(t, frame.Node)
	assert.Equal(t, node.ID, frame.Node.ID)

	svc.AssertExpectations(t)
}

func TestStreamTurnEndpoint_ErrorFrame(t *testing.T) {
	router, svc := newTestRouter()
	missionID := uuid.New()
	choiceID := uuid.New()

	svc.On("AdvanceTurnStream", mock.Anything, missionID, choiceID, mock.Anything, mock.Anything).
		Return(nil, models.ErrInsufficientFunds)

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/missions/" + missionID.String() + "/turns"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"choiceId": choiceID.String()}))

	var frame struct {
		Type    string `json:"type"`
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, http.StatusPaymentRequired, frame.Status)
	assert.NotEmpty(t, frame.Message)
}
