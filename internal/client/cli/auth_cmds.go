package cli

import (
	"context"
	"fmt"
)

// runRegister регистрирует нового пользователя
func (c *Cli) runRegister(ctx context.Context) error {
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := c.authService.Register(ctx, username, password); err != nil {
		return err
	}

	c.io.Println("Registered successfully. Now run 'tabkeeper login'.")
	return nil
}

// runLogin аутентифицируется и сохраняет сессию устройства
func (c *Cli) runLogin(ctx context.Context) error {
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := c.authService.Login(ctx, username, password); err != nil {
		return err
	}

	c.io.Println("Logged in successfully.")
	return nil
}

// runLogout отзывает сессию устройства.
// Локальная сессия чистится даже при недоступном сервере.
func (c *Cli) runLogout(ctx context.Context) error {
	_ = c.requireAuth(ctx)

	if err := c.authService.Logout(ctx); err != nil {
		c.io.Printf("Warning: %v\n", err)
	}

	c.io.Println("Logged out.")
	return nil
}
