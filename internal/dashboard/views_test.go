package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lovebox/internal/love"
	"lovebox/internal/role"
	"lovebox/internal/stream"
	"lovebox/internal/summary"
	"lovebox/internal/token"
)

func TestGuestSeesToolsButNoActivity(t *testing.T) {
	v := BuildHome(role.Guest, token.Profiles{}, "http://localhost:8080", stream.StateIdle, nil, nil, nil)

	assert.Equal(t, role.Guest, v.Role)
	assert.True(t, v.ShowTools, "tools stay visible for guests")
	assert.True(t, v.ShowTokenConfig)
	assert.False(t, v.ShowActivity)
	assert.False(t, v.ShowAdminEntry)
	assert.NotEmpty(t, v.Tools)
}

func TestGirlfriendViewHidesConfigToolsAndActivity(t *testing.T) {
	p := token.Profiles{Me: "m", Girlfriend: "g", Test: "t"}
	viewer := role.Resolve("g", p)
	v := BuildHome(viewer, p, "http://localhost:8080", stream.StateIdle, nil, nil, nil)

	assert.Equal(t, role.Girlfriend, v.Role)
	assert.False(t, v.ShowTokenConfig)
	assert.False(t, v.ShowTools)
	assert.False(t, v.ShowActivity)
	assert.Empty(t, v.Tools)
	assert.Empty(t, v.ShareLinks)
}

func TestMeSeesActivityPanel(t *testing.T) {
	p := token.Profiles{Me: "m", Girlfriend: "g"}
	events := []stream.ActivityEvent{{Type: stream.EventTypeButtonUsed, Key: "girlfriend.hug", UserID: 2}}
	v := BuildHome(role.Resolve("m", p), p, "http://localhost:8080", stream.StateOpen, events, nil, nil)

	assert.True(t, v.ShowActivity)
	assert.True(t, v.ShowAdminEntry)
	assert.Equal(t, events, v.Activities)
	assert.Equal(t, stream.StateOpen, v.StreamState)
}

func TestShareLinksSkipEmptySlotsAndEscape(t *testing.T) {
	p := token.Profiles{Me: "tok me", Girlfriend: ""}
	v := BuildHome(role.Guest, p, "https://love.example", stream.StateIdle, nil, nil, nil)

	assert.Equal(t, "https://love.example/?t=tok+me", v.ShareLinks["me"])
	_, ok := v.ShareLinks["girlfriend"]
	assert.False(t, ok)
}

func TestLatestMessagePrefersEchoThenLoveButton(t *testing.T) {
	echoes := []love.Echo{{Text: " 早点休息 "}}
	events := []stream.ActivityEvent{
		{Key: "me.ok"},
		{Key: "girlfriend.miss"},
		{Key: "girlfriend.hug"},
	}

	v := BuildHome(role.Me, token.Profiles{}, "", stream.StateIdle, events, echoes, nil)
	assert.Equal(t, "早点休息", v.LatestMessage)

	v = BuildHome(role.Me, token.Profiles{}, "", stream.StateIdle, events, nil, nil)
	assert.Equal(t, "想你了", v.LatestMessage, "newest girlfriend.* event wins")

	// The girlfriend never sees love-button fallbacks, only echoes.
	v = BuildHome(role.Girlfriend, token.Profiles{}, "", stream.StateIdle, events, nil, nil)
	assert.Equal(t, "", v.LatestMessage)
}

func TestLatestLoveMessageUnknownActionFallsBackToKey(t *testing.T) {
	events := []stream.ActivityEvent{{Key: "girlfriend.wave"}}
	assert.Equal(t, "girlfriend.wave", LatestLoveMessage(events))
}

func TestAdminViewGatedForGirlfriendAndGuest(t *testing.T) {
	for _, viewer := range []role.Role{role.Girlfriend, role.Guest} {
		v := BuildAdmin(viewer, stream.StateOpen, []stream.ActivityEvent{{Key: "x"}}, &summary.Result{}, false)
		assert.False(t, v.CanView, string(viewer))
		assert.Empty(t, v.Activities, string(viewer))
		assert.Nil(t, v.Summary, string(viewer))
	}
}

func TestAdminViewMasksTokens(t *testing.T) {
	res := &summary.Result{
		Summary: love.Summary{
			Date:   "2026-08-30",
			Events: []love.EventCount{{Type: "button_used", ToolKey: "me.hug", Count: 2}},
		},
		Users: []love.User{{ID: 7, Token: "abcdefghij", Role: "me"}, {ID: 8, Token: "short"}},
	}

	v := BuildAdmin(role.Test, stream.StateIdle, nil, res, false)
	assert.True(t, v.CanView)
	assert.Equal(t, "abc***hij", v.Users[0].Token)
	assert.Equal(t, "short", v.Users[1].Token)
	assert.Equal(t, "user", v.Users[1].Role)
	assert.Equal(t, []EventStat{{Label: "button_used me.hug", Count: 2}}, v.EventStats)

	shown := BuildAdmin(role.Test, stream.StateIdle, nil, res, true)
	assert.Equal(t, "abcdefghij", shown.Users[0].Token)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "12345678", MaskToken("12345678"))
	assert.Equal(t, "123***789", MaskToken("123456789"))
}

func TestResolvePhotoURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example/a.jpg", ResolvePhotoURL("http://api", "https://cdn.example/a.jpg"))
	assert.Equal(t, "http://api/uploads/a.jpg", ResolvePhotoURL("http://api", "/uploads/a.jpg"))
	assert.Equal(t, "/uploads/a.jpg", ResolvePhotoURL("", "/uploads/a.jpg"))
	assert.Equal(t, "", ResolvePhotoURL("http://api", ""))
}
