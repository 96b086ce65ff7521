// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "context"

// NotifyClient raises desktop notifications through the server.
//
//	err := client.Notify.Send(ctx, client.Notification{Title: "Build complete"})
type NotifyClient struct {
	c *Client
}

// Send raises a notification. The level defaults to [LevelInfo].
func (n *NotifyClient) Send(ctx context.Context, notification Notification) error {
	_, err := n.c.postJSON(ctx, "/api/v1/notify", notification)
	return err
}
