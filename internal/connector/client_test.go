package connector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(ctx context.Context) (string, error) { return string(s), nil }

func TestHTTPClientGetTeamMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/conversations/19:team@thread.skype/members", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "tenant-1", r.Header.Get("X-MsTeamsTenantId"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"29:a","name":"Ada Lovelace","givenName":"Ada","surname":"Lovelace","userPrincipalName":"ada@contoso.com","objectId":"aad-a"},
			{"id":"28:bot","name":"MeetupBot"}
		]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(staticToken("tok"))
	members, err := client.GetTeamMembers(context.Background(), srv.URL+"/", "19:team@thread.skype", "tenant-1")
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "29:a", members[0].ID)
	assert.Equal(t, "Ada", members[0].GivenName)
	assert.Equal(t, "aad-a", members[0].AADObjectID, "v3 objectId maps onto AADObjectID")
	assert.Empty(t, members[1].Surname)
}

func TestHTTPClientMapsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no access to team", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewHTTPClient(staticToken(""))
	_, err := client.GetTeamMembers(context.Background(), srv.URL, "team", "tenant")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusForbidden, te.StatusCode)
	assert.True(t, IsUnauthorized(err))
}

func TestHTTPClientSendsCardToConversation(t *testing.T) {
	var got Activity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/conversations":
			var params ConversationParameters
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
			assert.Equal(t, "tenant-1", params.TenantID)
			if assert.Len(t, params.Members, 1) {
				assert.Equal(t, "29:a", params.Members[0].ID)
			}
			_, _ = w.Write([]byte(`{"id":"a:conv-1"}`))
		case "/v3/conversations/a:conv-1/activities":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"id":"act-1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(staticToken(""))
	ctx := context.Background()

	conv, err := client.CreateOrGetDirectConversation(ctx, srv.URL, ChannelAccount{ID: "28:bot"}, ChannelAccount{ID: "29:a"}, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "a:conv-1", conv.ID)

	resp, err := client.SendToConversation(ctx, srv.URL, conv.ID, CardActivity(json.RawMessage(`{"type":"AdaptiveCard"}`)))
	require.NoError(t, err)
	assert.Equal(t, "act-1", resp.ID)

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, ContentTypeAdaptiveCard, got.Attachments[0].ContentType)
	assert.JSONEq(t, `{"type":"AdaptiveCard"}`, string(got.Attachments[0].Content))
}

func TestAppCredentialsCachesToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "app", r.PostForm.Get("client_id"))
		assert.Equal(t, "https://api.botframework.com/.default", r.PostForm.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer srv.Close()

	creds := &AppCredentials{AppID: "app", AppPassword: "secret", TokenURL: srv.URL}
	for i := 0; i < 3; i++ {
		tok, err := creds.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "abc", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAppCredentialsRejectedSecretIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	creds := &AppCredentials{AppID: "app", AppPassword: "wrong", TokenURL: srv.URL}
	_, err := creds.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
}

func TestAppCredentialsWithoutAppID(t *testing.T) {
	tok, err := (&AppCredentials{}).Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestCreateReplySwapsParticipants(t *testing.T) {
	in := &Activity{
		ID:           "msg-1",
		ServiceURL:   "https://smba.example",
		From:         &ChannelAccount{ID: "29:user"},
		Recipient:    &ChannelAccount{ID: "28:bot"},
		Conversation: &ConversationAccount{ID: "conv"},
	}
	reply := in.CreateReply("hi")
	assert.Equal(t, "28:bot", reply.From.ID)
	assert.Equal(t, "29:user", reply.Recipient.ID)
	assert.Equal(t, "msg-1", reply.ReplyToID)
	assert.Equal(t, "hi", reply.Text)
}
