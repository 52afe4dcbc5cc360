package service

import (
	"context"
	"fmt"
	"time"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.MissionService = (*missionService)(nil)

type missionService struct {
	db         interfaces.DBTX
	txManager  interfaces.TxManager
	missions   interfaces.MissionRepository
	nodes      interfaces.StoryNodeRepository
	wallets    interfaces.WalletRepository
	characters interfaces.CharacterRepository
	cache      interfaces.BalanceCache
	generator  interfaces.NarrativeGenerator
	publisher  interfaces.MissionEventPublisher
	locks      *missionLocks
	logger     *zap.Logger
}

// NewMissionService wires the mission engine. db is the standalone querier for
// reads outside transactions; publisher may be nil when messaging is disabled.
func NewMissionService(
	db interfaces.DBTX,
	txManager interfaces.TxManager,
	missions interfaces.MissionRepository,
	nodes interfaces.StoryNodeRepository,
	wallets interfaces.WalletRepository,
	characters interfaces.CharacterRepository,
	cache interfaces.BalanceCache,
	generator interfaces.NarrativeGenerator,
	publisher interfaces.MissionEventPublisher,
	logger *zap.Logger,
) interfaces.MissionService {
	return &missionService{
		db:         db,
		txManager:  txManager,
		missions:   missions,
		nodes:      nodes,
		wallets:    wallets,
		characters: characters,
		cache:      cache,
		generator:  generator,
		publisher:  publisher,
		locks:      newMissionLocks(),
		logger:     logger.Named("MissionService"),
	}
}

// BootstrapMission creates a mission for the player from character selections
// and optional style overrides. Selections are validated before any
// generation call; the mission, its root node and the wallet seed land in one
// transaction, so a storage failure leaves nothing behind.
func (s *missionService) BootstrapMission(ctx context.Context, playerID uuid.UUID, selections []models.CharacterSelection, overrides models.StyleOverrides) (*models.Mission, error) {
	logFields := []zap.Field{zap.String("playerID", playerID.String())}

	if err := models.ValidateSelections(selections); err != nil {
		s.logger.Debug("Bootstrap rejected, invalid selections", append(logFields, zap.Error(err))...)
		return nil, err
	}

	// Once validation passes the operation runs to completion even if the
	// caller goes away.
	dctx := context.WithoutCancel(ctx)

	roster, err := s.resolveRoster(dctx, selections)
	if err != nil {
		return nil, err
	}

	genCtx := models.BootstrapContext{
		PlayerID:       playerID,
		Characters:     roster,
		NarrativeStyle: overrides.NarrativeStyle,
		Mood:           overrides.Mood,
	}
	payload, meta, err := s.generator.GenerateBootstrap(dctx, genCtx)
	if err != nil {
		s.logger.Error("Bootstrap generation failed irrecoverably", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}
	if meta.Fallback {
		s.logger.Warn("Bootstrap served from fallback payload", logFields...)
	}

	missionID := uuid.New()
	rootID := uuid.New()
	now := time.Now().UTC()

	mission := &models.Mission{
		ID:              missionID,
		PlayerID:        playerID,
		Title:           payload.MissionTitle,
		Description:     payload.MissionDescription,
		Objective:       payload.Objective,
		Setting:         payload.Setting,
		NarrativeStyle:  payload.NarrativeStyle,
		Mood:            payload.Mood,
		PrimaryConflict: payload.PrimaryConflict,
		Difficulty:      difficultyOrDefault(payload.Difficulty),
		Deadline:        optionalText(payload.Deadline),
		RewardCurrency:  models.CurrencyDiamonds,
		RewardAmount:    rewardAllocation(),
		RootNodeID:      rootID,
		CurrentNodeID:   rootID,
		Status:          models.MissionStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	root := &models.StoryNode{
		ID:            rootID,
		MissionID:     missionID,
		NarrativeText: payload.OpeningNarrative,
		Tags:          []string{},
		Choices:       assembleChoices(payload.Choices),
		CreatedAt:     now,
	}

	err = s.txManager.WithTransaction(dctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if err := s.missions.Create(ctx, tx, mission); err != nil {
			return err
		}
		if err := s.nodes.Create(ctx, tx, root); err != nil {
			return err
		}
		_, err := s.wallets.EnsureWallet(ctx, tx, playerID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to persist bootstrapped mission", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistenceFailure, err)
	}
	s.invalidateBalances(dctx, playerID)

	s.publishEvent(dctx, interfaces.MissionEvent{
		EventType: interfaces.EventMissionStarted,
		MissionID: missionID,
		PlayerID:  playerID,
		Detail:    mission.Title,
	})

	s.logger.Info("Mission bootstrapped",
		append(logFields,
			zap.String("missionID", missionID.String()),
			zap.String("title", mission.Title),
			zap.Bool("fallback", meta.Fallback))...)
	return mission, nil
}

// resolveRoster turns validated selections into generation-context summaries.
// A selection pointing at an unknown character is a caller error.
func (s *missionService) resolveRoster(ctx context.Context, selections []models.CharacterSelection) ([]models.CharacterSummary, error) {
	ids := make([]uuid.UUID, len(selections))
	for i, sel := range selections {
		ids[i] = sel.CharacterID
	}
	summaries, err := s.characters.GetSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInternalServer, err)
	}

	roster := make([]models.CharacterSummary, 0, len(selections))
	for _, sel := range selections {
		summary, ok := summaries[sel.CharacterID]
		if !ok {
			s.logger.Debug("Bootstrap rejected, unknown character",
				zap.String("characterID", sel.CharacterID.String()))
			return nil, models.ErrInvalidSelection
		}
		summary.Role = sel.Role
		roster = append(roster, summary)
	}
	return roster, nil
}

func difficultyOrDefault(raw string) models.MissionDifficulty {
	switch models.MissionDifficulty(raw) {
	case models.DifficultyLow, models.DifficultyMedium, models.DifficultyHigh:
		return models.MissionDifficulty(raw)
	}
	return models.DifficultyMedium
}

func optionalText(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}

// invalidateBalances drops the player's cached balance snapshot after a
// ledger write. A failure here only delays freshness until the TTL.
func (s *missionService) invalidateBalances(ctx context.Context, playerID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, playerID); err != nil {
		s.logger.Warn("Failed to invalidate balance snapshot",
			zap.String("playerID", playerID.String()),
			zap.Error(err))
	}
}

// publishEvent emits a lifecycle event without letting messaging failures
// reach the player-facing operation.
func (s *missionService) publishEvent(ctx context.Context, event interfaces.MissionEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.PublishMissionEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish mission event",
			zap.String("event_type", string(event.EventType)),
			zap.String("missionID", event.MissionID.String()),
			zap.Error(err))
	}
}
