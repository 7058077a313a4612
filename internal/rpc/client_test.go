package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/discuss/internal/models"
)

type recordedCall struct {
	Path   string
	Params map[string]json.RawMessage
	Cookie string
}

// fakeServer answers JSON-RPC calls from a path-keyed table of results.
type fakeServer struct {
	mu      sync.Mutex
	calls   []recordedCall
	results map[string]string
	faults  map[string]string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{results: map[string]string{}, faults: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string                     `json:"id"`
		Params map[string]json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	call := recordedCall{Path: r.URL.Path, Params: req.Params}
	if cookie, err := r.Cookie("session_id"); err == nil {
		call.Cookie = cookie.Value
	}

	fs.mu.Lock()
	fs.calls = append(fs.calls, call)
	result, hasResult := fs.results[r.URL.Path]
	fault, hasFault := fs.faults[r.URL.Path]
	fs.mu.Unlock()

	if r.URL.Path == "/web/session/authenticate" {
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "abc123", Path: "/"})
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case hasFault:
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `","error":` + fault + `}`))
	case hasResult:
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `","result":` + result + `}`))
	default:
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `","result":true}`))
	}
}

func (fs *fakeServer) last(t *testing.T) recordedCall {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	require.NotEmpty(t, fs.calls)
	return fs.calls[len(fs.calls)-1]
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := New(Options{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "  "})
	require.Error(t, err)
}

func TestAuthenticateKeepsSessionCookie(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.results["/web/session/authenticate"] = `{"uid":2,"partner_id":3,"name":"Ada","db":"prod","user_context":{"lang":"en_US","tz":"UTC"}}`
	client := newTestClient(t, srv)

	session, err := client.Authenticate(context.Background(), "prod", "ada", "hunter2")
	require.NoError(t, err)
	require.Equal(t, int64(3), session.PartnerID)
	require.Equal(t, "prod", client.Session().Database)

	require.NoError(t, client.ChannelSeen(context.Background(), "7"))
	call := fs.last(t)
	require.Equal(t, "/web/dataset/call_kw/mail.channel/channel_seen", call.Path)
	require.Equal(t, "abc123", call.Cookie)

	var kwargs map[string]any
	require.NoError(t, json.Unmarshal(call.Params["kwargs"], &kwargs))
	require.Contains(t, kwargs, "context")
}

func TestAuthenticateRejectsInvalidCredentials(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.results["/web/session/authenticate"] = `{"uid":false}`
	client := newTestClient(t, srv)

	_, err := client.Authenticate(context.Background(), "prod", "ada", "wrong")
	require.Error(t, err)
}

func TestFaultIsTyped(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.faults["/web/dataset/call_kw/mail.message/set_message_done"] = `{"code":200,"message":"Odoo Server Error","data":{"name":"odoo.exceptions.AccessError","message":"denied"}}`
	client := newTestClient(t, srv)

	err := client.MarkRead(context.Background(), []models.MessageID{1, 2})
	require.Error(t, err)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, 200, rpcErr.Code)
	require.Equal(t, "denied", rpcErr.Data.Message)
	require.False(t, errors.Is(err, ErrSessionExpired))
}

func TestSessionExpired(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.faults["/web/dataset/call_kw/mail.message/unstar_all"] = `{"code":100,"message":"Odoo Session Expired","data":{"name":"odoo.http.SessionExpiredException","message":"Session expired"}}`
	client := newTestClient(t, srv)

	err := client.UnstarAll(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestFetchMessagesSendsDomainAndLimit(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.results["/web/dataset/call_kw/mail.message/message_fetch"] = `[
		{"id": 52, "author_id": [3, "Ada"], "body": "<p>hi</p>", "channel_ids": [7], "date": "2024-03-01 12:00:00", "model": "mail.channel", "res_id": 7},
		{"id": 51, "author_id": false, "body": false, "channel_ids": [7], "date": false, "model": false, "res_id": false}
	]`
	client := newTestClient(t, srv)

	domain := models.Domain{{Field: "channel_ids", Operator: "in", Value: []int64{7}}, {Field: "id", Operator: "<", Value: 50}}
	msgs, err := client.FetchMessages(context.Background(), domain, 25)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, models.MessageID(52), msgs[0].ID)
	require.Equal(t, int64(3), msgs[0].AuthorID.ID)
	require.True(t, msgs[1].AuthorID.IsZero())
	require.Equal(t, []models.ChannelID{"7"}, msgs[1].ChannelIDs)

	call := fs.last(t)
	require.JSONEq(t, `[[["channel_ids","in",[7]],["id","<",50]]]`, string(call.Params["args"]))
	var kwargs map[string]any
	require.NoError(t, json.Unmarshal(call.Params["kwargs"], &kwargs))
	require.Equal(t, float64(25), kwargs["limit"])
}

func TestPostMessageChoosesMethod(t *testing.T) {
	tests := []struct {
		name     string
		payload  models.PostPayload
		wantPath string
		result   string
		wantID   models.MessageID
	}{
		{
			name:     "plain post",
			payload:  models.PostPayload{Body: "hello"},
			wantPath: "/web/dataset/call_kw/mail.channel/message_post",
			result:   `99`,
			wantID:   99,
		},
		{
			name:     "command",
			payload:  models.PostPayload{Body: "/help", Command: "help"},
			wantPath: "/web/dataset/call_kw/mail.channel/execute_command",
			result:   `false`,
			wantID:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, srv := newFakeServer(t)
			fs.results[tt.wantPath] = tt.result
			client := newTestClient(t, srv)

			id, err := client.PostMessage(context.Background(), "7", tt.payload)
			require.NoError(t, err)
			require.Equal(t, tt.wantID, id)

			call := fs.last(t)
			require.Equal(t, tt.wantPath, call.Path)
			require.JSONEq(t, `[7]`, string(call.Params["args"]))
			var kwargs map[string]any
			require.NoError(t, json.Unmarshal(call.Params["kwargs"], &kwargs))
			require.Equal(t, "comment", kwargs["message_type"])
			require.Equal(t, tt.payload.Body, kwargs["body"])
		})
	}
}

func TestPostDocumentMessage(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.results["/web/dataset/call_kw/res.partner/message_post"] = `[120]`
	client := newTestClient(t, srv)

	id, err := client.PostDocumentMessage(context.Background(), "res.partner", 5, models.PostPayload{Body: "note", MessageType: "comment"})
	require.NoError(t, err)
	require.Equal(t, models.MessageID(120), id)
	require.JSONEq(t, `[5]`, string(fs.last(t).Params["args"]))
}

func TestMarkAllReadDefaults(t *testing.T) {
	fs, srv := newFakeServer(t)
	client := newTestClient(t, srv)

	require.NoError(t, client.MarkAllRead(context.Background(), nil, nil))
	var kwargs map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(fs.last(t).Params["kwargs"], &kwargs))
	require.JSONEq(t, `[]`, string(kwargs["channel_ids"]))
	require.JSONEq(t, `[]`, string(kwargs["domain"]))
}

func TestJoinChannelDecodesInfo(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.results["/web/dataset/call_kw/mail.channel/channel_join_and_get_info"] = `{
		"id": 7, "name": "general", "channel_type": "channel", "public": "public",
		"uuid": "u-7", "message_unread_counter": 2, "is_minimized": false, "state": "open"
	}`
	client := newTestClient(t, srv)

	info, err := client.JoinChannel(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, models.ChannelID("7"), info.ID)
	require.Equal(t, models.Text("general"), info.Name)
	require.Equal(t, 2, info.MessageUnreadCounter)
	require.JSONEq(t, `[[7]]`, string(fs.last(t).Params["args"]))
}

func TestInitMessaging(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.results["/mail/init_messaging"] = `{
		"channel_slots": {"channel_channel": [{"id": 7, "name": "general", "channel_type": "channel", "public": "public"}]},
		"needaction_inbox_counter": 4,
		"starred_counter": 1,
		"commands": [{"name": "help", "help": "Show help", "channel_types": ["channel"]}],
		"mention_partner_suggestions": [[{"id": 3, "name": "Ada", "im_status": "online"}]],
		"menu_id": 101,
		"shortcodes": [{"id": 1, "shortcode_type": "image", "source": ":)", "unicode_source": "😊", "substitution": "<img/>"}]
	}`
	client := newTestClient(t, srv)

	result, err := client.InitMessaging(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, result.NeedactionInboxCounter)
	require.Equal(t, 1, result.StarredCounter)
	require.Len(t, result.ChannelSlots["channel_channel"], 1)
	require.Equal(t, models.RecordID(101), result.MenuID)
	require.Len(t, result.Shortcodes, 1)
	require.Equal(t, "/mail/init_messaging", fs.last(t).Path)
}

func TestUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, srv)

	err := client.ToggleStar(context.Background(), 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
