// Package loader assembles the conversation around a status.
package loader

import (
	"context"
	"fmt"

	"github.com/tkrehbiel/statuslace/statusnet"
	"github.com/tkrehbiel/statuslace/storage"
	"github.com/tkrehbiel/statuslace/telemetry"
)

// MaxAncestors bounds the in-reply-to walk used when a status has no conversation id
const MaxAncestors = 10

// API is the part of the statusnet client the loader needs
type API interface {
	GetConversation(ctx context.Context, id string, paging statusnet.Paging) ([]statusnet.Status, error)
	ShowStatus(ctx context.Context, id string) (*statusnet.Status, error)
}

// Result is one page of a conversation.
// CanLoadAllReplies reports whether a reply search can complete the page;
// StatusNet servers always allow it.
type Result struct {
	Statuses          []statusnet.Status
	CanLoadAllReplies bool
}

type Loader struct {
	API   API
	Store storage.Statuses // optional, every loaded status is saved when set
}

func New(api API, store storage.Statuses) *Loader {
	return &Loader{API: api, Store: store}
}

// Load returns the conversation the status belongs to
func (l *Loader) Load(ctx context.Context, status statusnet.Status, paging statusnet.Paging) (Result, error) {
	var result Result
	if status.ConversationID != "" {
		statuses, err := l.API.GetConversation(ctx, status.ConversationID.String(), paging)
		if err != nil {
			return result, err
		}
		result = Result{Statuses: statuses, CanLoadAllReplies: true}
	} else {
		statuses, err := l.ancestors(ctx, status, paging)
		if err != nil {
			return result, err
		}
		result = Result{Statuses: statuses, CanLoadAllReplies: true}
	}
	l.save(result.Statuses)
	telemetry.Increment("conversations_loaded", 1)
	return result, nil
}

// Thread fetches a status by id and loads its conversation
func (l *Loader) Thread(ctx context.Context, id string, paging statusnet.Paging) (Result, error) {
	status, err := l.API.ShowStatus(ctx, id)
	if err != nil {
		return Result{}, err
	}
	l.save([]statusnet.Status{*status})
	return l.Load(ctx, *status, paging)
}

// ancestors walks in_reply_to_status_id upwards, starting at max_id when paging older
func (l *Loader) ancestors(ctx context.Context, status statusnet.Status, paging statusnet.Paging) ([]statusnet.Status, error) {
	statuses := make([]statusnet.Status, 0)
	if paging.SinceID != "" && paging.MaxID == "" {
		// asking for newer statuses, which only a reply search could find
		return statuses, nil
	}
	next := paging.MaxID
	if next == "" {
		next = status.InReplyToStatusID.String()
	}
	seen := map[string]bool{status.ID.String(): true}
	for next != "" && len(statuses) < MaxAncestors && !seen[next] {
		seen[next] = true
		item, err := l.API.ShowStatus(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("walking replies at %s: %w", next, err)
		}
		statuses = append(statuses, *item)
		next = item.InReplyToStatusID.String()
	}
	return statuses, nil
}

func (l *Loader) save(statuses []statusnet.Status) {
	if l.Store == nil {
		return
	}
	for _, s := range statuses {
		st := storage.FromStatus(s)
		if err := l.Store.SaveStatus(&st); err != nil {
			telemetry.Error(err, "saving status [%s]", s.ID)
		}
	}
}
