package services

import (
	"context"
	"fmt"
	"strconv"

	"nva-backoffice/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// GlobalTopic receives notices addressed to every agent.
const GlobalTopic = "all-agents"

// Pusher delivers a notification to devices. Delivery is best effort.
type Pusher interface {
	Push(ctx context.Context, n *models.Notification) error
}

func AgentTopic(agentID uint) string {
	return fmt.Sprintf("agent-%d", agentID)
}

func topicFor(n *models.Notification) string {
	if n.IsGlobal || n.RecipientID == nil {
		return GlobalTopic
	}
	return AgentTopic(*n.RecipientID)
}

// FirebasePusher sends notices through Firebase Cloud Messaging topics.
type FirebasePusher struct {
	client *messaging.Client
}

func NewFirebasePusher(ctx context.Context, projectID, credentialsFile string) (*FirebasePusher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FirebasePusher{client: client}, nil
}

func (p *FirebasePusher) Push(ctx context.Context, n *models.Notification) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Topic: topicFor(n),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: map[string]string{
			"notification_id": strconv.FormatUint(uint64(n.ID), 10),
			"date":            n.Date.Format("2006-01-02"),
		},
	})
	if err != nil {
		return fmt.Errorf("send push to %s: %w", topicFor(n), err)
	}
	return nil
}

// NoopPusher is used when Firebase is not configured.
type NoopPusher struct{}

func (NoopPusher) Push(context.Context, *models.Notification) error { return nil }
