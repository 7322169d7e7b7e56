package turn

import "context"

// PruneCheckpoints deletes checkpoint artifacts of terminal turns other than
// the newest committed ones. Open turns always keep their checkpoint.
func (m *Manager) PruneCheckpoints(ctx context.Context, campaignID string) (pruned int, err error) {
	err = m.withCampaign(ctx, campaignID, func(a *Artifacts) error {
		pruned, err = m.prune(ctx, a, campaignID)
		return err
	})
	return pruned, err
}

// pruneLocked runs after commit and rollback; failures only cost disk space
// so they are logged rather than returned.
func (m *Manager) pruneLocked(ctx context.Context, a *Artifacts, campaignID string) {
	n, err := m.prune(ctx, a, campaignID)
	if err != nil {
		m.logger.Warn("pruning checkpoints", "campaign", campaignID, "error", err)
		return
	}
	if n > 0 {
		m.logger.Debug("checkpoints pruned", "campaign", campaignID, "count", n)
	}
}

func (m *Manager) prune(ctx context.Context, a *Artifacts, campaignID string) (int, error) {
	turns, err := a.Store.ListTurns(ctx, campaignID)
	if err != nil {
		return 0, asCoded("prune", err, "listing turns")
	}

	keep := make(map[string]bool)
	kept := 0
	for i := len(turns) - 1; i >= 0 && kept < m.retain; i-- {
		if turns[i].Status == StatusCommitted {
			keep[turns[i].ID] = true
			kept++
		}
	}

	pruned := 0
	for _, t := range turns {
		if !t.Status.Terminal() || keep[t.ID] || t.CheckpointPruned {
			continue
		}
		if err := a.Checkpoints.Delete(t.Checkpoint); err != nil {
			return pruned, WrapError(CodeIO, "prune", err, "deleting checkpoint of turn %d", t.Number)
		}
		if err := a.Store.MarkCheckpointPruned(ctx, t.ID); err != nil {
			return pruned, asCoded("prune", err, "marking checkpoint pruned")
		}
		pruned++
	}
	return pruned, nil
}
