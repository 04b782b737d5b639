package workflow

import "errors"

var (
	// ErrRunInProgress rejects StartRun while another run is in flight.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrNoRunInProgress rejects stop and skip requests with nothing to act on.
	ErrNoRunInProgress = errors.New("no run in progress")
	// ErrStoppedDuringInit reports a stop request that landed while the run
	// was still being allocated; the run settles as cancelled.
	ErrStoppedDuringInit = errors.New("run stopped during initialization")
	// ErrNotRunning rejects run requests before Start or after Stop.
	ErrNotRunning = errors.New("coordinator is not running")
)
