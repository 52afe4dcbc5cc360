package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdvanceTurn plays one choice on an ACTIVE mission.
func (s *missionService) AdvanceTurn(ctx context.Context, missionID uuid.UUID, choiceID uuid.UUID, customText string) (*interfaces.TurnResult, error) {
	return s.advanceTurn(ctx, missionID, choiceID, customText, nil)
}

// AdvanceTurnStream behaves like AdvanceTurn while forwarding narrative
// fragments to onFragment as they arrive.
func (s *missionService) AdvanceTurnStream(ctx context.Context, missionID uuid.UUID, choiceID uuid.UUID, customText string, onFragment interfaces.FragmentHandler) (*interfaces.TurnResult, error) {
	return s.advanceTurn(ctx, missionID, choiceID, customText, onFragment)
}

// advanceTurn is the single compound operation behind both advance variants:
// resolve the choice, debit its cost, generate the next beat, append it. The
// mission's lock is held from start to finish, spanning the generation
// suspension, so concurrent advances on one mission cannot interleave.
func (s *missionService) advanceTurn(ctx context.Context, missionID uuid.UUID, choiceID uuid.UUID, customText string, onFragment interfaces.FragmentHandler) (*interfaces.TurnResult, error) {
	s.locks.Acquire(missionID)
	defer s.locks.Release(missionID)

	// A caller that disconnects mid-turn must not abort a turn that already
	// debited its cost; the turn runs to completion on a detached context.
	dctx := context.WithoutCancel(ctx)
	logFields := []zap.Field{
		zap.String("missionID", missionID.String()),
		zap.String("choiceID", choiceID.String()),
	}

	mission, err := s.missions.GetByID(dctx, s.db, missionID)
	if err != nil {
		return nil, err
	}
	if mission.Status != models.MissionStatusActive {
		s.logger.Debug("Turn rejected, mission not active",
			append(logFields, zap.String("status", string(mission.Status)))...)
		return nil, models.ErrMissionNotActive
	}

	currentNode, err := s.nodes.GetByID(dctx, s.db, mission.CurrentNodeID)
	if err != nil {
		return nil, err
	}
	choice := currentNode.ChoiceByID(choiceID)
	if choice == nil {
		return nil, models.ErrChoiceNotFound
	}

	chosenText := choice.Text
	cost := choice.Cost.Clone()
	isCustom := choice.Tier == models.TierCustom
	if isCustom {
		if strings.TrimSpace(customText) == "" {
			return nil, models.ErrEmptyCustomText
		}
		chosenText = customText
		// Custom actions are priced at selection time, always in diamonds.
		cost = models.TierCost(models.TierCustom, models.CurrencyDiamonds)
	}

	// Debit before generation: a player who cannot afford the choice never
	// triggers a generation call.
	err = s.txManager.WithTransaction(dctx, func(ctx context.Context, tx interfaces.DBTX) error {
		return s.wallets.Debit(ctx, tx, mission.PlayerID, cost, spendDetail(chosenText), nil)
	})
	if err != nil {
		s.logger.Debug("Turn debit failed", append(logFields, zap.Error(err))...)
		return nil, err
	}
	s.invalidateBalances(dctx, mission.PlayerID)

	genCtx := models.TurnContext{
		MissionID:        mission.ID,
		PlayerID:         mission.PlayerID,
		Title:            mission.Title,
		Objective:        mission.Objective,
		Setting:          mission.Setting,
		NarrativeStyle:   mission.NarrativeStyle,
		Mood:             mission.Mood,
		PrimaryConflict:  mission.PrimaryConflict,
		CurrentNarrative: currentNode.NarrativeText,
		CharacterNames:   characterNames(currentNode.Choices),
		ChosenText:       chosenText,
		IsCustom:         isCustom,
	}

	var payload *models.TurnPayload
	var meta *models.GenerationMeta
	if onFragment != nil {
		payload, meta, err = s.generator.GenerateTurnStream(dctx, genCtx, onFragment)
	} else {
		payload, meta, err = s.generator.GenerateTurn(dctx, genCtx)
	}
	if err != nil {
		// Only reachable through a context-building bug; generation outages
		// come back as fallback payloads instead. Compensate and surface.
		s.refundAfterFailure(dctx, mission.ID, mission.PlayerID, cost, logFields)
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}
	if meta.Fallback {
		s.logger.Warn("Turn served from fallback payload", logFields...)
	}

	newStatus, tags := statusTransition(payload.MissionStatus)
	newNode := &models.StoryNode{
		ID:            uuid.New(),
		MissionID:     mission.ID,
		ParentNodeID:  &currentNode.ID,
		NarrativeText: payload.NarrativeText,
		Tags:          tags,
		Choices:       assembleChoices(payload.Choices),
		CreatedAt:     time.Now().UTC(),
	}

	err = s.txManager.WithTransaction(dctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if err := s.nodes.Create(ctx, tx, newNode); err != nil {
			return err
		}
		if err := s.missions.UpdateCursor(ctx, tx, mission.ID, newNode.ID, newStatus); err != nil {
			return err
		}
		if newStatus == models.MissionStatusCompleted && mission.RewardAmount > 0 {
			return s.wallets.Credit(ctx, tx, mission.PlayerID,
				mission.RewardCurrency, mission.RewardAmount,
				models.ReasonGrant, "mission reward", &newNode.ID)
		}
		return nil
	})
	if err != nil {
		// The debit already happened; compensate it before surfacing.
		s.refundAfterFailure(dctx, mission.ID, mission.PlayerID, cost, logFields)
		s.logger.Error("Failed to persist turn", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)
	}
	if newStatus == models.MissionStatusCompleted {
		s.invalidateBalances(dctx, mission.PlayerID)
	}

	switch newStatus {
	case models.MissionStatusCompleted:
		s.publishEvent(dctx, interfaces.MissionEvent{
			EventType: interfaces.EventMissionCompleted,
			MissionID: mission.ID,
			PlayerID:  mission.PlayerID,
			Detail:    mission.Title,
		})
	case models.MissionStatusFailed:
		s.publishEvent(dctx, interfaces.MissionEvent{
			EventType: interfaces.EventMissionFailed,
			MissionID: mission.ID,
			PlayerID:  mission.PlayerID,
			Detail:    mission.Title,
		})
	}

	mission.CurrentNodeID = newNode.ID
	mission.Status = newStatus
	mission.UpdatedAt = newNode.CreatedAt

	s.logger.Info("Turn advanced",
		append(logFields,
			zap.String("nodeID", newNode.ID.String()),
			zap.String("status", string(newStatus)),
			zap.Bool("fallback", meta.Fallback))...)
	return &interfaces.TurnResult{Mission: mission, Node: newNode, Fallback: meta.Fallback}, nil
}

// refundAfterFailure compensates a debited cost tuple after a downstream
// failure. A refund failure is logged loudly; the audit trail still carries
// the original debit for reconciliation.
func (s *missionService) refundAfterFailure(ctx context.Context, missionID uuid.UUID, playerID uuid.UUID, cost models.CostTuple, logFields []zap.Field) {
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		return s.wallets.Refund(ctx, tx, playerID, cost, "turn persistence failed", nil)
	})
	if err != nil {
		s.logger.Error("Failed to refund after turn failure, manual reconciliation required",
			append(logFields, zap.Error(err), zap.Any("cost", cost))...)
		return
	}
	s.invalidateBalances(ctx, playerID)
	s.publishEvent(ctx, interfaces.MissionEvent{
		EventType: interfaces.EventRefundIssued,
		MissionID: missionID,
		PlayerID:  playerID,
		Detail:    "turn persistence failed",
	})
}

// statusTransition maps the content-declared mission status to the lifecycle
// state and the tags recorded on the new node. The engine never infers
// endings from prose.
func statusTransition(declared string) (models.MissionStatus, []string) {
	switch declared {
	case models.TurnStatusMissionComplete:
		return models.MissionStatusCompleted, []string{models.NodeTagMissionComplete}
	case models.TurnStatusMissionFailed:
		return models.MissionStatusFailed, []string{models.NodeTagMissionFailed}
	default:
		return models.MissionStatusActive, []string{}
	}
}

// characterNames collects the distinct flavor names on a node's choices, in
// first-seen order, for the turn prompt.
func characterNames(choices []models.StoryChoice) []string {
	seen := make(map[string]struct{}, len(choices))
	names := make([]string, 0, len(choices))
	for _, choice := range choices {
		name := strings.TrimSpace(choice.CharacterUsed)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
