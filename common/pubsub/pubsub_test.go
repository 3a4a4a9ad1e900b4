package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	GuildID int64 `json:"guild_id"`
}

func TestHandleEventDecodesPayload(t *testing.T) {
	ps := New(nil)

	var got *Event
	ps.AddHandler("test_evt", func(evt *Event) {
		got = evt
	}, testPayload{})

	ps.handleEvent(`123,test_evt,{"guild_id":123}`)

	require.NotNil(t, got)
	assert.Equal(t, "test_evt", got.EventName)
	assert.Equal(t, int64(123), got.TargetGuildInt)

	payload, ok := got.Data.(*testPayload)
	require.True(t, ok)
	assert.Equal(t, int64(123), payload.GuildID)
}

func TestHandleEventFilter(t *testing.T) {
	ps := New(nil)
	ps.FilterFunc = func(guildID int64) bool {
		return guildID == 5
	}

	calls := 0
	ps.AddHandler("filtered_evt", func(evt *Event) {
		calls++
	}, testPayload{})

	ps.handleEvent(`10,filtered_evt,{"guild_id":10}`)
	assert.Equal(t, 0, calls, "filtered out event was handled")

	ps.handleEvent(`5,filtered_evt,{"guild_id":5}`)
	assert.Equal(t, 1, calls)

	// target -1 bypasses the filter
	ps.handleEvent(`-1,filtered_evt,{"guild_id":0}`)
	assert.Equal(t, 2, calls)
}

func TestHandleEventMalformed(t *testing.T) {
	ps := New(nil)

	calls := 0
	ps.AddHandler("some_evt", func(evt *Event) {
		calls++
	}, testPayload{})

	ps.handleEvent("garbage")
	ps.handleEvent("1,some_evt,not json")
	assert.Equal(t, 0, calls)
}

func TestHandleEventNoPayloadHandler(t *testing.T) {
	ps := New(nil)

	calls := 0
	ps.AddHandler("plain_evt", func(evt *Event) {
		calls++
	}, nil)

	ps.handleEvent("1,plain_evt,")
	assert.Equal(t, 1, calls)
}
