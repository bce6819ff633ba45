//go:build !linux

package profinet

import "errors"

func setRealtimePriority(priority int) error {
	if priority <= 0 {
		return nil
	}
	return errors.New("real-time scheduling not supported on this platform")
}
