package cli

import (
	"context"
	"fmt"
	"time"
)

// runSessions показывает живые сессии всех устройств пользователя
func (c *Cli) runSessions(ctx context.Context) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	resp, err := c.apiClient.Sessions(ctx)
	if err != nil {
		return err
	}

	if len(resp.Sessions) == 0 {
		c.io.Println("No active sessions.")
		return nil
	}

	for _, s := range resp.Sessions {
		marker := " "
		if s.Current {
			marker = "*"
		}
		c.io.Printf("%s %s  %-8s  last used %s\n",
			marker, s.SessionID, s.Device, s.LastUsedAt.Format(time.RFC3339))
	}
	c.io.Println("\n* current session")
	return nil
}

// runRevoke отзывает сессию другого устройства
func (c *Cli) runRevoke(ctx context.Context, args []string) error {
	if err := c.requireAuth(ctx); err != nil {
		return err
	}

	if len(args) == 0 {
		return fmt.Errorf("usage: tabkeeper revoke SESSION_ID")
	}

	if err := c.apiClient.RevokeSession(ctx, args[0]); err != nil {
		return err
	}

	c.io.Printf("Session %s revoked.\n", args[0])
	return nil
}
