package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/jewelchat/internal/api"
	"github.com/matheus3301/jewelchat/internal/chat"
	"github.com/matheus3301/jewelchat/internal/profile"
	"github.com/matheus3301/jewelchat/internal/status"
	"github.com/matheus3301/jewelchat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	socket  string
	creds   []string
	persist []bool
	sent    []string
	events  []api.Event
	closed  bool
}

func (f *fakeClient) GetStatus(context.Context) (api.Status, error) {
	return api.Status{Profile: "main", UserID: "u1", State: status.Connected, Connected: true, Conversations: 2}, nil
}

func (f *fakeClient) SetCredentials(_ context.Context, token, userID string, persist bool) error {
	f.creds = append(f.creds, token+"/"+userID)
	f.persist = append(f.persist, persist)
	return nil
}

func (f *fakeClient) ListConversations(_ context.Context, limit, _ int) (api.ConversationPage, error) {
	return api.ConversationPage{
		Conversations: []store.Conversation{{PeerID: "seller-1", DisplayName: "Aurum", PendingCount: 1, LastMessagePreview: "ring"}},
		HasMore:       limit == 1,
	}, nil
}

func (f *fakeClient) OpenConversation(_ context.Context, peer string, _ int) (api.Thread, error) {
	return api.Thread{Peer: peer, HistoryError: "backend down", Messages: []chat.Message{
		{ID: "s1", FromUserID: peer, SenderName: "Aurum", Text: "hello", Confirmed: true, Timestamp: 1},
		{ID: "me-1", FromUserID: "u1", Text: "hi", Failed: true, Timestamp: 2},
	}}, nil
}

func (f *fakeClient) SendText(_ context.Context, peer, text string) (chat.Message, error) {
	f.sent = append(f.sent, peer+": "+text)
	return chat.Message{ID: "me-9", Text: text}, nil
}

func (f *fakeClient) Resend(_ context.Context, _, tempID string) (chat.Message, error) {
	if tempID != "me-9" {
		return chat.Message{}, errors.New("not pending")
	}
	return chat.Message{ID: tempID}, nil
}

func (f *fakeClient) SearchMessages(_ context.Context, query, peer string, _ int) ([]store.SearchResult, error) {
	return []store.SearchResult{{PeerID: "seller-1", Snippet: "…" + query + "…"}}, nil
}

func (f *fakeClient) WatchEvents(_ context.Context, _ []string, fn func(api.Event) error) error {
	for _, e := range f.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func resetFlags() {
	profileFlag, jsonFlag, timeoutFlag = "", false, 10*time.Second
	loginUser, loginToken, loginTokenStdin, loginNoSave = "", "", false, false
	convLimit, convOffset, openLimit = 50, 0, 50
	searchPeer, searchLimit = "", 50
	watchPrefixes = nil
	sharePNG, shareSize = "", 256
}

// run executes chatctl with args against fc and returns stdout and stderr.
func run(t *testing.T, fc *fakeClient, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(profile.EnvHome, t.TempDir())
	t.Setenv("JEWELCHAT_TOKEN", "")
	t.Setenv("JEWELCHAT_USER_ID", "")
	resetFlags()

	orig := dial
	dial = func(socketPath string) (chatClient, error) {
		fc.socket = socketPath
		return fc, nil
	}
	t.Cleanup(func() { dial = orig })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestStatus(t *testing.T) {
	fc := &fakeClient{}
	out, _, err := run(t, fc, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "CONNECTED")
	assert.Contains(t, out, "u1")
	assert.True(t, fc.closed)
	assert.Equal(t, profile.SocketPath("main"), fc.socket)
}

func TestStatusJSON(t *testing.T) {
	out, _, err := run(t, &fakeClient{}, "", "status", "--json")
	require.NoError(t, err)
	var st api.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "u1", st.UserID)
}

func TestProfileFlagSelectsSocket(t *testing.T) {
	fc := &fakeClient{}
	_, _, err := run(t, fc, "", "--profile", "shop", "status")
	require.NoError(t, err)
	assert.Equal(t, profile.SocketPath("shop"), fc.socket)

	_, _, err = run(t, fc, "", "--profile", "Bad Name", "status")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	fc := &fakeClient{}
	out, _, err := run(t, fc, "secret\n", "login", "--user", "42", "--token-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as 42")
	assert.Equal(t, []string{"secret/42"}, fc.creds)
	assert.Equal(t, []bool{true}, fc.persist)
}

func TestLoginRequiresBoth(t *testing.T) {
	fc := &fakeClient{}
	_, _, err := run(t, fc, "", "login", "--user", "42")
	assert.Error(t, err)
	assert.Empty(t, fc.creds)
}

func TestLogout(t *testing.T) {
	fc := &fakeClient{}
	_, _, err := run(t, fc, "", "logout", "--no-save")
	require.NoError(t, err)
	assert.Equal(t, []string{"/"}, fc.creds)
	assert.Equal(t, []bool{false}, fc.persist)
}

func TestConversations(t *testing.T) {
	out, _, err := run(t, &fakeClient{}, "", "conversations", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "seller-1")
	assert.Contains(t, out, "Aurum")
	assert.Contains(t, out, "--offset 1")
}

func TestOpenPrintsThreadAndHistoryWarning(t *testing.T) {
	out, errOut, err := run(t, &fakeClient{}, "", "open", "seller-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Aurum:")
	assert.Contains(t, out, "you (failed, me-1)")
	assert.Contains(t, errOut, "backend down")
}

func TestSendAndResend(t *testing.T) {
	fc := &fakeClient{}
	out, _, err := run(t, fc, "", "send", "seller-1", "is", "it", "gold?")
	require.NoError(t, err)
	assert.Equal(t, []string{"seller-1: is it gold?"}, fc.sent)
	assert.Contains(t, out, "me-9 (pending)")

	out, _, err = run(t, fc, "", "resend", "seller-1", "me-9")
	require.NoError(t, err)
	assert.Contains(t, out, "Resent me-9")

	_, _, err = run(t, fc, "", "resend", "seller-1", "me-0")
	assert.Error(t, err)
}

func TestArgValidation(t *testing.T) {
	for _, args := range [][]string{{"send", "only-peer"}, {"open"}, {"resend", "p"}, {"search"}, {"status", "extra"}} {
		fc := &fakeClient{}
		_, _, err := run(t, fc, "", args...)
		assert.Error(t, err, "args %v", args)
		assert.Empty(t, fc.socket, "args %v must fail before dialing", args)
	}
}

func TestSearch(t *testing.T) {
	out, _, err := run(t, &fakeClient{}, "", "search", "gold", "ring")
	require.NoError(t, err)
	assert.Contains(t, out, "gold ring")
}

func TestWatch(t *testing.T) {
	fc := &fakeClient{events: []api.Event{
		{Kind: "session.status_changed", From: "CONNECTING", To: "CONNECTED"},
		{Kind: "notify.send_failed", Peer: "seller-1", Text: "message not sent"},
		{Kind: "conversation.updated", Peer: "seller-1", Reason: "message"},
	}}
	out, _, err := run(t, fc, "", "watch")
	require.NoError(t, err)
	assert.Contains(t, out, "CONNECTING -> CONNECTED")
	assert.Contains(t, out, "seller-1: message not sent")
	assert.Contains(t, out, "seller-1 (message)")
}

func TestShareDoesNotNeedDaemon(t *testing.T) {
	fc := &fakeClient{}
	out, _, err := run(t, fc, "", "share", "seller-1")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:3000/messages/seller-1")
	assert.Contains(t, out, "█")
	assert.Empty(t, fc.socket)
}

func TestProfilesEmpty(t *testing.T) {
	out, _, err := run(t, &fakeClient{}, "", "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "No profiles found.")
}

func TestFormatEvent(t *testing.T) {
	e := api.Event{Kind: "socket.connected", UserID: "u1", Generation: 3}
	assert.True(t, strings.HasSuffix(formatEvent(e), "socket.connected user u1, generation 3"))
}
