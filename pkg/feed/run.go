package feed

import "context"

// StartRun appends run_started followed by run_config, establishing the
// simulation metadata consumed by replay-time analyses (spec.md §4.3). It
// returns the run id derived from seed and a caller-supplied label so the
// same (seed, label) pair always identifies the same run.
func StartRun(ctx context.Context, store Store, label string, seed int64, agents, k, ticks int, algorithm Algorithm) (runID string, err error) {
	runID = NewRunID(seed, label)
	reduce := NewReducer(store)

	err = store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		startedPayload := RunStartedPayload{RunID: runID, StartedTick: 0}
		startedEncoded, err := EncodePayload(KindRunStarted, startedPayload)
		if err != nil {
			return newStoreError("start_run", err)
		}
		startedEvent := Event{Tick: 0, Kind: KindRunStarted, Payload: startedEncoded}
		if _, err := store.Append(ctx, tx, startedEvent); err != nil {
			return err
		}
		if err := reduce.Apply(ctx, tx, startedEvent); err != nil {
			return err
		}

		configPayload := RunConfigPayload{
			RunID:            runID,
			Seed:             seed,
			Agents:           agents,
			RankingAlgorithm: string(algorithm),
			K:                k,
			Ticks:            ticks,
		}
		configEncoded, err := EncodePayload(KindRunConfig, configPayload)
		if err != nil {
			return newStoreError("start_run", err)
		}
		configEvent := Event{Tick: 0, Kind: KindRunConfig, Payload: configEncoded}
		if _, err := store.Append(ctx, tx, configEvent); err != nil {
			return err
		}
		return reduce.Apply(ctx, tx, configEvent)
	})
	if err != nil {
		return "", err
	}
	return runID, nil
}
