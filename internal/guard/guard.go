// Package guard scopes host access to the host's owner.
package guard

import (
	"github.com/hossein1376/fm/internal/db"
	"github.com/hossein1376/fm/internal/hostfs"
)

// Authorize returns hostfs.ErrForbidden unless callerID owns host.
func Authorize(callerID string, host *db.Host) error {
	if host == nil || callerID == "" || host.UserID != callerID {
		return hostfs.ErrForbidden
	}
	return nil
}
