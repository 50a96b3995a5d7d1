package validation

import (
	"errors"
	"regexp"
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,99}$`)

// ValidateDeviceID checks an operator-assigned external device id.
func ValidateDeviceID(id string) error {
	if id == "" {
		return errors.New("device_id is required")
	}
	if !deviceIDPattern.MatchString(id) {
		return errors.New("device_id must be 1-100 characters of letters, digits, '.', '_', ':' or '-'")
	}
	return nil
}
