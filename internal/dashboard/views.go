// Package dashboard assembles the role-gated view models served by the
// gateway. Gating is recomputed per request from the token store and the
// role resolver; it shapes what is rendered and is not a security boundary —
// the backend independently enforces every privileged operation.
package dashboard

import (
	"net/url"
	"strings"

	"lovebox/internal/love"
	"lovebox/internal/role"
	"lovebox/internal/stream"
	"lovebox/internal/summary"
	"lovebox/internal/token"
)

// loveKeyLabels maps button action keys to their display phrases.
var loveKeyLabels = map[string]string{
	"hug":  "给你抱抱",
	"miss": "想你了",
	"ok":   "我很好",
	"busy": "忙但想你",
}

// LoveButton is one tap target of the home view.
type LoveButton struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// loveButtons keeps the original tap order.
var loveButtons = []LoveButton{
	{Key: "hug", Label: loveKeyLabels["hug"]},
	{Key: "miss", Label: loveKeyLabels["miss"]},
	{Key: "ok", Label: loveKeyLabels["ok"]},
	{Key: "busy", Label: loveKeyLabels["busy"]},
}

// ToolLink is one entry of the copywriting tool grid.
type ToolLink struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Href  string `json:"href"`
}

var toolLinks = []ToolLink{
	{Title: "脚本生成", Desc: "短视频/直播口播脚本", Href: "/script"},
	{Title: "标题生成", Desc: "爆款标题一键产出", Href: "/title"},
	{Title: "佣金计算", Desc: "收益预估与对比", Href: "/commission"},
	{Title: "话术提炼", Desc: "合规建议与卖点提炼", Href: "/refine"},
	{Title: "轻信号", Desc: "今日状态轻轻告诉我", Href: "/signal"},
}

// HomeView is the home page's render model.
type HomeView struct {
	Role            role.Role              `json:"role"`
	ShowTokenConfig bool                   `json:"showTokenConfig"`
	ShowTools       bool                   `json:"showTools"`
	ShowActivity    bool                   `json:"showActivity"`
	ShowAdminEntry  bool                   `json:"showAdminEntry"`
	LoveButtons     []LoveButton           `json:"loveButtons"`
	Tools           []ToolLink             `json:"tools,omitempty"`
	ShareLinks      map[string]string      `json:"shareLinks,omitempty"`
	StreamState     stream.State           `json:"streamState"`
	Activities      []stream.ActivityEvent `json:"activities,omitempty"`
	LatestMessage   string                 `json:"latestMessage,omitempty"`
	Photos          []love.Photo           `json:"photos,omitempty"`
}

// BuildHome composes the home view for the given viewer. The girlfriend view
// hides the token configuration and the tool entries; the activity panel is
// visible only to me and test.
func BuildHome(viewer role.Role, p token.Profiles, origin string, st stream.State, activities []stream.ActivityEvent, echoes []love.Echo, photos []love.Photo) HomeView {
	v := HomeView{
		Role:            viewer,
		ShowTokenConfig: viewer != role.Girlfriend,
		ShowTools:       viewer != role.Girlfriend,
		ShowActivity:    viewer == role.Me || viewer == role.Test,
		ShowAdminEntry:  viewer == role.Me || viewer == role.Test,
		LoveButtons:     loveButtons,
		StreamState:     st,
		Photos:          photos,
	}
	if v.ShowTools {
		v.Tools = toolLinks
	}
	if v.ShowTokenConfig {
		v.ShareLinks = shareLinks(origin, p)
	}
	if v.ShowActivity {
		v.Activities = activities
	}
	v.LatestMessage = latestMessage(viewer, echoes, activities)
	return v
}

// latestMessage picks what the "words from them" panel shows: the newest
// echo, or for non-girlfriend viewers the newest love-button message as a
// fallback.
func latestMessage(viewer role.Role, echoes []love.Echo, activities []stream.ActivityEvent) string {
	var latestEcho string
	if len(echoes) > 0 {
		latestEcho = strings.TrimSpace(echoes[0].Text)
	}
	if viewer == role.Girlfriend {
		return latestEcho
	}
	if latestEcho != "" {
		return latestEcho
	}
	return LatestLoveMessage(activities)
}

// LatestLoveMessage returns the display phrase of the newest buffered event
// tapped by the girlfriend, or "" when there is none.
func LatestLoveMessage(events []stream.ActivityEvent) string {
	for _, evt := range events {
		if !strings.HasPrefix(evt.Key, "girlfriend.") {
			continue
		}
		action := strings.TrimPrefix(evt.Key, "girlfriend.")
		if label, ok := loveKeyLabels[action]; ok {
			return label
		}
		return evt.Key
	}
	return ""
}

// shareLinks builds the per-profile entry links (?t=<token>), skipping empty
// slots.
func shareLinks(origin string, p token.Profiles) map[string]string {
	links := make(map[string]string, 3)
	add := func(name, tok string) {
		if tok != "" {
			links[name] = origin + "/?t=" + url.QueryEscape(tok)
		}
	}
	add(string(role.Me), p.Me)
	add(string(role.Girlfriend), p.Girlfriend)
	add(string(role.Test), p.Test)
	return links
}

// EventStat is one aggregated row of the admin summary panel.
type EventStat struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// UserView is a user record prepared for display, with the token masked
// unless full tokens were requested.
type UserView struct {
	ID    int64  `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Token string `json:"token"`
}

// AdminView is the admin console's render model. When the viewer is not
// allowed to see it, only Role and CanView are populated.
type AdminView struct {
	Role        role.Role              `json:"role"`
	CanView     bool                   `json:"canView"`
	StreamState stream.State           `json:"streamState"`
	Activities  []stream.ActivityEvent `json:"activities,omitempty"`
	Summary     *love.Summary          `json:"summary,omitempty"`
	EventStats  []EventStat            `json:"eventStats,omitempty"`
	Users       []UserView             `json:"users,omitempty"`
	Logs        []love.EventLog        `json:"logs,omitempty"`
}

// BuildAdmin composes the admin view. res may be nil when no summary refresh
// has been performed.
func BuildAdmin(viewer role.Role, st stream.State, activities []stream.ActivityEvent, res *summary.Result, showTokens bool) AdminView {
	v := AdminView{
		Role:    viewer,
		CanView: viewer == role.Me || viewer == role.Test,
	}
	if !v.CanView {
		return v
	}
	v.StreamState = st
	v.Activities = activities
	if res == nil {
		return v
	}

	s := res.Summary
	v.Summary = &s
	v.EventStats = eventStats(s.Events)
	v.Users = make([]UserView, 0, len(res.Users))
	for _, u := range res.Users {
		uv := UserView{ID: u.ID, Role: u.Role, Name: u.Name, Token: MaskToken(u.Token)}
		if uv.Role == "" {
			uv.Role = role.ServerUser
		}
		if showTokens {
			uv.Token = u.Token
		}
		v.Users = append(v.Users, uv)
	}
	v.Logs = res.Logs
	return v
}

func eventStats(events []love.EventCount) []EventStat {
	stats := make([]EventStat, 0, len(events))
	for _, e := range events {
		stats = append(stats, EventStat{
			Label: strings.TrimSpace(e.Type + " " + e.ToolKey),
			Count: e.Count,
		})
	}
	return stats
}

// MaskToken hides the middle of a token for display; short tokens are shown
// as-is because masking them would leak their length anyway.
func MaskToken(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:3] + "***" + v[len(v)-3:]
}

// ResolvePhotoURL prefixes backend-relative photo URLs with the API base.
func ResolvePhotoURL(base, u string) string {
	if u == "" || base == "" || strings.HasPrefix(u, "http") {
		return u
	}
	return base + u
}
