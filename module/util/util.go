package util

// WaitError blocks until an error arrives on errChan or done closes, and returns the error
// or nil respectively.
//
// When done closes because a worker threw, both channels may be ready at the same time.
// The error channel is checked once more after done so that the error is never lost.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
	}
	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// CheckClosed reports whether ch is closed (or has a pending signal) without blocking.
func CheckClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
