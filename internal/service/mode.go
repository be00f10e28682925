package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// ParseMode parses an octal permission string such as "755" or "0644".
func ParseMode(s string) (os.FileMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty mode", types.ErrInvalidArgument)
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("%w: mode %q is not an octal permission value", types.ErrInvalidArgument, s)
	}
	return os.FileMode(v), nil
}

// FlagsFromMode derives the index flags from the group and other bits of
// mode. The owner bits do not matter since the owner always has access.
func FlagsFromMode(mode os.FileMode) types.Permissions {
	return types.Permissions{
		Read:  mode&0o044 != 0,
		Write: mode&0o022 != 0,
	}
}

// EffectiveMode is the mode actually set on the object: the requested
// bits with the owner bits forced on so the manager can keep operating it.
func EffectiveMode(mode os.FileMode, t types.EntryType) os.FileMode {
	if t == types.TypeDirectory {
		return mode.Perm() | 0o700
	}
	return mode.Perm() | 0o600
}
