// Package watch polls a conversation for new statuses.
package watch

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/tkrehbiel/statuslace/statusnet"
	"github.com/tkrehbiel/statuslace/telemetry"
)

// StatusHandler defines what to do when new statuses are discovered
type StatusHandler interface {
	// Checked is called after every successful poll with the number of statuses returned
	Checked(n int)
	// NewStatus is called for each status not seen before, oldest first
	NewStatus(status statusnet.Status)
}

// Fetcher is the part of the statusnet client the watcher needs
type Fetcher interface {
	GetConversation(ctx context.Context, id string, paging statusnet.Paging) ([]statusnet.Status, error)
}

// ConversationWatcher watches one conversation and reports statuses it hasn't seen
type ConversationWatcher struct {
	ID      string // conversation id
	Count   int    // page size per poll, 0 for the server default
	Client  Fetcher
	Handler StatusHandler

	known   map[statusnet.ID]bool
	sinceID int64
}

func NewConversationWatcher(id string, client Fetcher, handler StatusHandler) *ConversationWatcher {
	return &ConversationWatcher{
		ID:      id,
		Client:  client,
		Handler: handler,
		known:   make(map[statusnet.ID]bool),
	}
}

// AddKnown marks a status as already seen
func (c *ConversationWatcher) AddKnown(status statusnet.Status) {
	c.known[status.ID] = true
	if n, ok := status.ID.Int(); ok && n > c.sinceID {
		c.sinceID = n
	}
}

// Check polls the conversation once
func (c *ConversationWatcher) Check(ctx context.Context) error {
	paging := statusnet.Paging{Count: c.Count}
	if c.sinceID > 0 {
		paging.SinceID = strconv.FormatInt(c.sinceID, 10)
	}

	statuses, err := c.Client.GetConversation(ctx, c.ID, paging)
	if err != nil {
		return err
	}
	c.Handler.Checked(len(statuses))

	newStatuses := make([]statusnet.Status, 0)
	for _, s := range statuses {
		if s.ID == "" || c.known[s.ID] {
			continue
		}
		newStatuses = append(newStatuses, s)
	}

	// sort from oldest to newest
	sort.SliceStable(newStatuses, func(i, j int) bool {
		return newStatuses[i].Timestamp().Before(newStatuses[j].Timestamp())
	})

	for _, s := range newStatuses {
		c.AddKnown(s)
		c.Handler.NewStatus(s)
	}
	return nil
}

// DefaultPeriod is used when Watch is given a non-positive period
const DefaultPeriod = time.Minute

// Watch checks immediately and then every period until the context ends
func (c *ConversationWatcher) Watch(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	if err := c.Check(ctx); err != nil {
		telemetry.Error(err, "checking conversation %s", c.ID)
	}
	for {
		select {
		case <-ctx.Done():
			telemetry.Trace("stopped watching conversation %s: %s", c.ID, ctx.Err())
			return
		case <-ticker.C:
			if err := c.Check(ctx); err != nil {
				// keep polling, the next tick may succeed
				telemetry.Error(err, "checking conversation %s", c.ID)
			}
		}
	}
}
