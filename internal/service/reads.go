package service

import (
	"context"

	"github.com/82deutschmark/Disavowed/internal/interfaces"
	"github.com/82deutschmark/Disavowed/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AbandonMission moves an ACTIVE mission to ABANDONED. Spent currency stays
// spent.
func (s *missionService) AbandonMission(ctx context.Context, missionID uuid.UUID) error {
	s.locks.Acquire(missionID)
	defer s.locks.Release(missionID)

	mission, err := s.missions.GetByID(ctx, s.db, missionID)
	if err != nil {
		return err
	}
	if mission.Status != models.MissionStatusActive {
		return models.ErrMissionNotActive
	}

	if err := s.missions.UpdateStatus(ctx, s.db, missionID, models.MissionStatusAbandoned); err != nil {
		s.logger.Error("Failed to abandon mission",
			zap.String("missionID", missionID.String()), zap.Error(err))
		return err
	}

	s.publishEvent(ctx, interfaces.MissionEvent{
		EventType: interfaces.EventMissionAbandoned,
		MissionID: mission.ID,
		PlayerID:  mission.PlayerID,
		Detail:    mission.Title,
	})
	s.logger.Info("Mission abandoned", zap.String("missionID", missionID.String()))
	return nil
}

// GetMission returns a mission with its current node loaded.
func (s *missionService) GetMission(ctx context.Context, missionID uuid.UUID) (*models.Mission, *models.StoryNode, error) {
	mission, err := s.missions.GetByID(ctx, s.db, missionID)
	if err != nil {
		return nil, nil, err
	}
	node, err := s.nodes.GetByID(ctx, s.db, mission.CurrentNodeID)
	if err != nil {
		return nil, nil, err
	}
	return mission, node, nil
}

// ListMissions returns the player's missions, newest first.
func (s *missionService) ListMissions(ctx context.Context, playerID uuid.UUID, limit int) ([]*models.Mission, error) {
	return s.missions.ListByPlayer(ctx, s.db, playerID, limit)
}

// GetNode returns one node of a mission's graph. A node id that exists under
// a different mission is reported as not found rather than leaked.
func (s *missionService) GetNode(ctx context.Context, missionID uuid.UUID, nodeID uuid.UUID) (*models.StoryNode, error) {
	node, err := s.nodes.GetByID(ctx, s.db, nodeID)
	if err != nil {
		return nil, err
	}
	if node.MissionID != missionID {
		return nil, models.ErrNodeNotFound
	}
	return node, nil
}

// Balances returns the player's wallet balances, cache-aside. A miss falls
// through to the ledger, seeding the wallet on first use.
func (s *missionService) Balances(ctx context.Context, playerID uuid.UUID) (map[models.Currency]int64, error) {
	if balances, err := s.cache.Get(ctx, playerID); err == nil {
		return balances, nil
	}

	var wallet *models.Wallet
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		var txErr error
		wallet, txErr = s.wallets.EnsureWallet(ctx, tx, playerID)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cache.Set(ctx, playerID, wallet.Balances); cacheErr != nil {
		// Next read repopulates; the balances themselves are already in hand.
		s.logger.Warn("Failed to cache balances",
			zap.String("playerID", playerID.String()), zap.Error(cacheErr))
	}
	return wallet.Balances, nil
}

// History returns the player's most recent ledger transactions, newest first.
func (s *missionService) History(ctx context.Context, playerID uuid.UUID, limit int) ([]*models.Transaction, error) {
	return s.wallets.ListTransactions(ctx, s.db, playerID, limit)
}
