//go:build windows

package pathcheck

import (
	"os"

	"github.com/hpungsan/prompter/internal/errors"
)

// Windows has no O_NOFOLLOW. Creating symlinks there needs elevated
// privileges, and ValidatePath has already rejected symlinked paths.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return f, nil
}
