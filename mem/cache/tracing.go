package cache

import "github.com/sarchlab/cachesim/sim/hooking"

// HookPosAccess marks the completion of an access. The hook item is the
// AccessResult.
var HookPosAccess = &hooking.HookPos{Name: "Access"}

func (s *Simulator) traceAccess(result AccessResult) {
	if s.NumHooks() == 0 {
		return
	}

	ctx := hooking.HookCtx{
		Domain: s,
		Pos:    HookPosAccess,
		Item:   result,
	}

	s.InvokeHook(ctx)
}
