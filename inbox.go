package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Actions understood by the messaging webhook.
const (
	actionAddMessage     = "addMessage"
	actionGetAllMessages = "getAllMessages"
	actionGetMessageByID = "getMessageById"
	actionSendReply      = "sendReply"
)

// Contact message statuses, owned by the webhook service.
const (
	MessageReceived = "Received"
	MessageReplied  = "Replied"
)

// ContactMessage lives in the external spreadsheet behind the webhook. This
// system only reads messages and appends replies; the lifecycle is owned by
// the collaborator.
type ContactMessage struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Reply     string `json:"reply"`
}

type webhookRequest struct {
	Action    string `json:"action"`
	SecretKey string `json:"secretKey"`
	Params    any    `json:"params,omitempty"`
}

type webhookResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type addMessageParams struct {
	MessageID string `json:"messageId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	UserID    string `json:"userId,omitempty"`
}

type getMessageParams struct {
	MessageID string `json:"messageId"`
}

type sendReplyParams struct {
	MessageID       string `json:"messageId"`
	RecipientEmail  string `json:"recipientEmail"`
	RecipientName   string `json:"recipientName"`
	OriginalMessage string `json:"originalMessage"`
	ReplyMessage    string `json:"replyMessage"`
}

// InboxClient talks to the shared-secret messaging webhook that stores the
// contact inbox. Calls are not retried; a failure surfaces directly to the
// caller as an UpstreamError.
type InboxClient struct {
	Endpoint   string
	SecretKey  string
	HTTPClient *http.Client
}

func NewInboxClient(endpoint, secretKey string) *InboxClient {
	return &InboxClient{
		Endpoint:   endpoint,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *InboxClient) call(action string, params any, out any) error {
	payload, err := json.Marshal(webhookRequest{
		Action:    action,
		SecretKey: c.SecretKey,
		Params:    params,
	})
	if err != nil {
		return &UpstreamError{Action: action, Err: err}
	}

	resp, err := c.HTTPClient.Post(c.Endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return &UpstreamError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Action: action, Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
	}

	var envelope webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &UpstreamError{Action: action, Err: err}
	}

	if envelope.Status != "success" {
		return &UpstreamError{Action: action, Message: envelope.Message}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &UpstreamError{Action: action, Err: err}
		}
	}

	return nil
}

// AddMessage stores a new contact message and returns its generated ID.
func (c *InboxClient) AddMessage(name, email, message, userID string) (string, error) {
	id := uuid.NewString()

	err := c.call(actionAddMessage, addMessageParams{
		MessageID: id,
		Name:      name,
		Email:     email,
		Message:   message,
		UserID:    userID,
	}, nil)
	if err != nil {
		return "", err
	}

	return id, nil
}

// GetAllMessages fetches the full inbox, newest first.
func (c *InboxClient) GetAllMessages() ([]ContactMessage, error) {
	var messages []ContactMessage
	if err := c.call(actionGetAllMessages, nil, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// GetMessageByID fetches a single message.
func (c *InboxClient) GetMessageByID(id string) (*ContactMessage, error) {
	var message ContactMessage
	if err := c.call(actionGetMessageByID, getMessageParams{MessageID: id}, &message); err != nil {
		return nil, err
	}

	return &message, nil
}

// SendReply emails a reply to the sender and marks the message replied on the
// collaborator's side.
func (c *InboxClient) SendReply(msg *ContactMessage, reply string) error {
	return c.call(actionSendReply, sendReplyParams{
		MessageID:       msg.ID,
		RecipientEmail:  msg.Email,
		RecipientName:   msg.Name,
		OriginalMessage: msg.Message,
		ReplyMessage:    reply,
	}, nil)
}
