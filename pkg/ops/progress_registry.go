package ops

import (
	"sync"

	"github.com/cuemby/modio-go/pkg/progress"
	"github.com/cuemby/modio-go/pkg/types"
)

// progressRegistry hands out and tracks the progress.Info for whichever
// mod currently has an install/update/upload in flight, so a host can poll
// "how far along is mod 42" without threading a channel through every
// composed operation.
type progressRegistry struct {
	mu    sync.Mutex
	infos map[types.ModID]*progress.Info
}

func newProgressRegistry() *progressRegistry {
	return &progressRegistry{infos: make(map[types.ModID]*progress.Info)}
}

// begin starts tracking a fresh operation for modID, replacing any
// previous (necessarily completed, since only one transition runs at a
// time per entry) info.
func (r *progressRegistry) begin(modID types.ModID) *progress.Info {
	info := progress.NewInfo(modID)
	r.mu.Lock()
	r.infos[modID] = info
	r.mu.Unlock()
	return info
}

// end stops tracking modID's operation once it completes, successfully or
// not.
func (r *progressRegistry) end(modID types.ModID) {
	r.mu.Lock()
	delete(r.infos, modID)
	r.mu.Unlock()
}

// CancelOperation marks modID's in-flight operation (if any) cancelled; the
// operation's next progress callback observes this via its weak Tracker
// and aborts with errcode.Cancelled.
func (o *Ops) CancelOperation(modID types.ModID) {
	o.progressReg.mu.Lock()
	info, ok := o.progressReg.infos[modID]
	o.progressReg.mu.Unlock()
	if ok {
		info.Cancel()
	}
}

// Progress returns the in-flight progress.Info for modID, if any is active.
func (o *Ops) Progress(modID types.ModID) (*progress.Info, bool) {
	o.progressReg.mu.Lock()
	defer o.progressReg.mu.Unlock()
	info, ok := o.progressReg.infos[modID]
	return info, ok
}
