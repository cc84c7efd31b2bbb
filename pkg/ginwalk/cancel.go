package ginwalk

import "dinodb/pkg/ginhost"

// checkCancelled polls the caller's Cancellation without blocking. It is
// called once per page visit, matching the page-at-a-time granularity the
// rest of the walker uses for releasing resources.
func checkCancelled(index string, cancel ginhost.Cancellation) *CheckError {
	if cancel == nil {
		return nil
	}
	done := cancel.Done()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return newErr(KindCancelled, index, "check cancelled by caller")
	default:
		return nil
	}
}
