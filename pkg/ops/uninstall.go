package ops

import (
	"context"

	"github.com/cuemby/modio-go/pkg/fsio"
	"github.com/cuemby/modio-go/pkg/types"
)

// Uninstall implements scheduler.Dispatcher for an entry in
// StateUninstallPending: recursively remove the mod's install directory.
// A missing directory is not an error — uninstalling an entry whose files
// were already removed out-of-band still counts as success.
func (o *Ops) Uninstall(ctx context.Context, e *types.Entry) error {
	path := e.PathOnDisk()
	if path == "" {
		return nil
	}
	if !fsio.Exists(path) {
		return nil
	}
	return fsio.DeleteFolder(path)
}
