package statusnet

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConversationAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xml:lang="en-US" xmlns="http://www.w3.org/2005/Atom" xmlns:thr="http://purl.org/syndication/thread/1.0">
  <id>https://social.example/api/statusnet/conversation/77.atom</id>
  <title>Conversation</title>
  <updated>2016-02-27T10:05:00+00:00</updated>
  <entry>
    <id>tag:social.example,2016-02-27:noticeId=124:objectType=comment</id>
    <title>@alice sounds good</title>
    <link rel="alternate" type="text/html" href="https://social.example/notice/124"/>
    <author><name>bob</name></author>
    <published>2016-02-27T10:05:00+00:00</published>
    <updated>2016-02-27T10:05:00+00:00</updated>
    <content type="html">@&lt;a href=&quot;https://social.example/alice&quot;&gt;alice&lt;/a&gt; sounds good</content>
    <thr:in-reply-to ref="tag:social.example,2016-02-27:noticeId=123:objectType=note" href="https://social.example/notice/123"></thr:in-reply-to>
  </entry>
  <entry>
    <id>https://social.example/notice/123</id>
    <title>lunch?</title>
    <link rel="alternate" type="text/html" href="https://social.example/notice/123"/>
    <author><name>alice</name></author>
    <published>2016-02-27T10:00:00+00:00</published>
    <updated>2016-02-27T10:00:00+00:00</updated>
    <content type="html">lunch?</content>
  </entry>
</feed>`

func TestGetConversationFeed(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, testConversationAtom)
	client := newTestClient(t, srv.URL)

	statuses, err := client.GetConversationFeed(context.Background(), "77", Paging{Count: 2})
	require.NoError(t, err)
	assert.Equal(t, "/statusnet/conversation/77.atom", srv.lastRequest().URL.Path)
	assert.Equal(t, "count=2", srv.lastRequest().URL.RawQuery)
	assert.Equal(t, "application/atom+xml", srv.lastRequest().Header.Get("Accept"))

	require.Len(t, statuses, 2)
	assert.Equal(t, ID("124"), statuses[0].ID)
	assert.Equal(t, "@alice sounds good", statuses[0].Text)
	assert.Equal(t, ID("77"), statuses[0].ConversationID)
	assert.Equal(t, "bob", statuses[0].ScreenName())
	assert.Equal(t, 10, statuses[0].Timestamp().Hour())
	assert.Equal(t, 5, statuses[0].Timestamp().Minute())

	assert.Equal(t, ID("123"), statuses[1].ID)
	assert.Equal(t, "https://social.example/notice/123", statuses[1].URL)
}

func TestGetConversationFeed_NotAFeed(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK, `plain text`)
	client := newTestClient(t, srv.URL)

	statuses, err := client.GetConversationFeed(context.Background(), "77", Paging{})
	assert.Nil(t, statuses)
	_, ok := AsServiceCallError(err)
	assert.True(t, ok)
}

func TestEntryIDFromString(t *testing.T) {
	assert.Equal(t, ID("5"), entryIDFromString("tag:host,2016:noticeId=5:objectType=note"))
	assert.Equal(t, ID("42"), entryIDFromString("https://host/notice/42"))
	assert.Equal(t, ID("urn:x"), entryIDFromString("urn:x"))
}
