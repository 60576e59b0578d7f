package engine

import (
	"context"

	"github.com/vedsirdeshmukh/are-sim/persist"
)

// dumpState implements spec §6's "dump_dir ... write initial_state and
// final_state JSON-lines dumps" flag via persist.BoltStore, the same
// embedded-store component SPEC_FULL.md's DOMAIN STACK names for
// persistence (§6's "Persistence format (non-prescriptive)"): rather
// than hand-rolling a second, bespoke file writer for this one flag,
// phase ("initial_state" or "final_state") is used as the store's run-ID
// key so both dumps land in the same aresim.db under cfg.DumpDir,
// addressable the same way a saved/loaded run would be. A write failure
// here is logged and does not fail the run: the dump is an introspection
// aid, not part of the simulation's pass/fail contract.
func (env *Environment) dumpState(ctx context.Context, phase string) {
	if env.cfg.DumpDir == nil {
		return
	}
	store, err := persist.Open(*env.cfg.DumpDir)
	if err != nil {
		env.tel.Warn(ctx, "dump_dir: failed to open store", "phase", phase, "error", err)
		return
	}
	defer store.Close()

	state := env.GetState()
	if err := store.SaveEngineState(phase, state); err != nil {
		env.tel.Warn(ctx, "dump_dir: failed to save engine state", "phase", phase, "error", err)
	}
	for _, a := range env.registry.Apps() {
		if err := store.SaveAppState(phase, a.Name(), a.GetState()); err != nil {
			env.tel.Warn(ctx, "dump_dir: failed to save app state", "phase", phase, "app", a.Name(), "error", err)
		}
	}
}
