package statusnet

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

// noticeIDPattern pulls the notice id out of a StatusNet tag URI,
// e.g. tag:example.net,2016-02-27:noticeId=123:objectType=note
var noticeIDPattern = regexp.MustCompile(`noticeId=(\d+)`)

// GetConversationFeed fetches a conversation in its Atom rendering.
// Entries carry less than the JSON statuses: no user ids and no counts.
func (c *Client) GetConversationFeed(ctx context.Context, id string, paging Paging) ([]Status, error) {
	var statuses []Status
	err := c.call(ctx, conversationFeedRoute, map[string]string{"id": id}, paging.Values(), func(body []byte) error {
		// gofeed parsers keep state, so each call gets its own
		feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("parsing feed: %w", err)
		}
		statuses = statusesFromFeed(feed, ID(id))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

func statusesFromFeed(feed *gofeed.Feed, conversationID ID) []Status {
	statuses := make([]Status, 0, len(feed.Items))
	for _, item := range feed.Items {
		s := Status{
			ID:             entryID(item),
			Text:           strings.TrimSpace(item.Title),
			HTML:           item.Content,
			URI:            item.GUID,
			URL:            item.Link,
			ConversationID: conversationID,
		}
		if item.PublishedParsed != nil {
			s.CreatedAt = item.PublishedParsed.UTC().Format(TimeFormat)
		} else if item.UpdatedParsed != nil {
			s.CreatedAt = item.UpdatedParsed.UTC().Format(TimeFormat)
		}
		if item.Author != nil {
			s.User = &User{Name: item.Author.Name, ScreenName: item.Author.Name}
		}
		if ref := inReplyTo(item); ref != "" {
			s.InReplyToStatusID = entryIDFromString(ref)
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// inReplyTo reads the thr:in-reply-to threading extension
func inReplyTo(item *gofeed.Item) string {
	thr, ok := item.Extensions["thr"]
	if !ok {
		return ""
	}
	for _, ext := range thr["in-reply-to"] {
		if ref := ext.Attrs["ref"]; ref != "" {
			return ref
		}
	}
	return ""
}

func entryID(item *gofeed.Item) ID {
	if item.GUID != "" {
		return entryIDFromString(item.GUID)
	}
	return entryIDFromString(item.Link)
}

// entryIDFromString finds a notice id in a tag URI or notice URL,
// falling back to the string itself
func entryIDFromString(s string) ID {
	if m := noticeIDPattern.FindStringSubmatch(s); m != nil {
		return ID(m[1])
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			if _, ok := ID(base).Int(); ok {
				return ID(base)
			}
		}
	}
	return ID(s)
}
