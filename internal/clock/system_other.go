//go:build !linux

package clock

import (
	"errors"
	"time"
)

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

func (System) Set(time.Time) error {
	return errors.New("setting the system clock is only supported on linux")
}
