package lgtv

import "time"

// Sleeper pauses the calling goroutine. Tests inject a recorder.
type Sleeper func(time.Duration)

// WakeTV asks the set to power on until it acknowledges.
//
// Each attempt sends ("power", "on") and then sleeps for delay, whether or
// not the set answered. The loop stops after the first acknowledged
// attempt, so k attempts always cost k sleeps. The result is the last
// reply; the set's status is not re-queried.
//
// Parameters:
//   - r: Device to wake
//   - attempts: Maximum number of "power on" requests; <= 0 sends nothing
//   - delay: Pause after every attempt
//   - sleep: Pause implementation; nil uses time.Sleep
//
// Returns:
//   - bool: true if an attempt was acknowledged
//   - error: The first request error, returned as-is with no further sleep
func WakeTV(r Requester, attempts int, delay time.Duration, sleep Sleeper) (bool, error) {
	if sleep == nil {
		sleep = time.Sleep
	}

	ok := false
	for i := 0; i < attempts; i++ {
		var err error
		ok, err = r.Request("power", "on")
		if err != nil {
			return false, err
		}
		sleep(delay)
		if ok {
			break
		}
	}
	return ok, nil
}
