package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the messaging transport used by the bot.
type Client interface {
	GetTeamMembers(ctx context.Context, serviceURL, teamID, tenantID string) ([]TeamsChannelAccount, error)
	GetTeamName(ctx context.Context, serviceURL, teamID string) (string, error)
	CreateOrGetDirectConversation(ctx context.Context, serviceURL string, bot, user ChannelAccount, tenantID string) (*ConversationResourceResponse, error)
	CreateConversation(ctx context.Context, serviceURL string, params *ConversationParameters) (*ConversationResourceResponse, error)
	SendToConversation(ctx context.Context, serviceURL, conversationID string, activity *Activity) (*ResourceResponse, error)
	ReplyToActivity(ctx context.Context, reply *Activity) (*ResourceResponse, error)
}

// HTTPClient implements Client against the Bot Framework connector REST API.
type HTTPClient struct {
	httpClient *http.Client
	tokens     TokenSource
}

// NewHTTPClient creates a connector client that authenticates with tokens.
func NewHTTPClient(tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
	}
}

func (c *HTTPClient) GetTeamMembers(ctx context.Context, serviceURL, teamID, tenantID string) ([]TeamsChannelAccount, error) {
	endpoint := fmt.Sprintf("%s/v3/conversations/%s/members", baseURL(serviceURL), url.PathEscape(teamID))

	var members []TeamsChannelAccount
	header := http.Header{}
	if tenantID != "" {
		header.Set("X-MsTeamsTenantId", tenantID)
	}
	if err := c.do(ctx, "get team members", http.MethodGet, endpoint, header, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *HTTPClient) GetTeamName(ctx context.Context, serviceURL, teamID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v3/teams/%s", baseURL(serviceURL), url.PathEscape(teamID))

	var details TeamDetails
	if err := c.do(ctx, "get team details", http.MethodGet, endpoint, nil, nil, &details); err != nil {
		return "", err
	}
	return details.Name, nil
}

// CreateOrGetDirectConversation asks the connector for the 1:1 conversation
// between bot and user. The service returns the existing conversation when
// there already is one.
func (c *HTTPClient) CreateOrGetDirectConversation(ctx context.Context, serviceURL string, bot, user ChannelAccount, tenantID string) (*ConversationResourceResponse, error) {
	params := &ConversationParameters{
		Bot:      &bot,
		Members:  []ChannelAccount{user},
		TenantID: tenantID,
		ChannelData: &TeamsChannelData{
			Tenant: &TenantInfo{ID: tenantID},
		},
	}
	return c.CreateConversation(ctx, serviceURL, params)
}

func (c *HTTPClient) CreateConversation(ctx context.Context, serviceURL string, params *ConversationParameters) (*ConversationResourceResponse, error) {
	endpoint := baseURL(serviceURL) + "/v3/conversations"

	var resp ConversationResourceResponse
	if err := c.do(ctx, "create conversation", http.MethodPost, endpoint, nil, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) SendToConversation(ctx context.Context, serviceURL, conversationID string, activity *Activity) (*ResourceResponse, error) {
	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities", baseURL(serviceURL), url.PathEscape(conversationID))

	var resp ResourceResponse
	if err := c.do(ctx, "send to conversation", http.MethodPost, endpoint, nil, activity, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ReplyToActivity(ctx context.Context, reply *Activity) (*ResourceResponse, error) {
	if reply.Conversation == nil || reply.Conversation.ID == "" {
		return nil, &TransportError{Op: "reply to activity", Err: fmt.Errorf("reply has no conversation")}
	}

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities/%s",
		baseURL(reply.ServiceURL), url.PathEscape(reply.Conversation.ID), url.PathEscape(reply.ReplyToID))

	var resp ResourceResponse
	if err := c.do(ctx, "reply to activity", http.MethodPost, endpoint, nil, reply, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, endpoint string, header http.Header, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := fmt.Errorf("%s", strings.TrimSpace(string(snippet)))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			cause = fmt.Errorf("%w: %v", ErrUnauthorized, cause)
		case http.StatusNotFound:
			cause = fmt.Errorf("%w: %v", ErrNotFound, cause)
		}
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: cause}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func baseURL(serviceURL string) string {
	return strings.TrimRight(serviceURL, "/")
}
