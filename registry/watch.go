package registry

import (
	"context"
	"sync"

	"github.com/famkit/location-sharing-backend/interfaces"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind loses intermediate transitions; it still converges on
// the latest status.
const subscriberBuffer = 8

// approvalHub is an in-process fanout of approval status changes, consumed by
// the SSE watch endpoint.
type approvalHub struct {
	mu   sync.Mutex
	subs map[interfaces.FamilyID]map[chan interfaces.ApprovalStatus]struct{}
}

func newApprovalHub() *approvalHub {
	return &approvalHub{
		subs: make(map[interfaces.FamilyID]map[chan interfaces.ApprovalStatus]struct{}),
	}
}

// subscribe registers a new watcher for the family. The channel is closed and
// the watcher removed when ctx is cancelled.
func (h *approvalHub) subscribe(ctx context.Context, id interfaces.FamilyID) <-chan interfaces.ApprovalStatus {
	ch := make(chan interfaces.ApprovalStatus, subscriberBuffer)

	h.mu.Lock()
	if h.subs[id] == nil {
		h.subs[id] = make(map[chan interfaces.ApprovalStatus]struct{})
	}
	h.subs[id][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()

		h.mu.Lock()
		delete(h.subs[id], ch)
		if len(h.subs[id]) == 0 {
			delete(h.subs, id)
		}
		h.mu.Unlock()

		close(ch)
	}()

	return ch
}

// notify delivers a status change to all watchers of the family without
// blocking; slow subscribers drop updates instead of stalling the writer.
func (h *approvalHub) notify(id interfaces.FamilyID, status interfaces.ApprovalStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[id] {
		select {
		case ch <- status:
		default:
		}
	}
}
