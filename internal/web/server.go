package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/xaenox/mailpilot-bot/internal/auth"
	"github.com/xaenox/mailpilot-bot/internal/models"
	"go.uber.org/zap"
)

// Authenticator is the session surface the sign-in pages drive.
type Authenticator interface {
	LoginURL(ctx context.Context) (string, error)
	Complete(ctx context.Context, token, errParam string) (*models.User, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
}

// Server is the browser side of sign-in: the OAuth redirect lands here and
// the bearer token it carries becomes the bot's session.
type Server struct {
	app     *fiber.App
	session Authenticator
	logger  *zap.Logger
}

func NewServer(session Authenticator, logger *zap.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "MailPilot",
			DisableStartupMessage: true,
		}),
		session: session,
		logger:  logger,
	}

	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	s.app.Get("/", s.status)
	s.app.Get("/signin", s.signIn)
	s.app.Get("/auth/success", s.authSuccess)
	s.app.Post("/logout", s.logout)
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("Web server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("HTTP request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("took", time.Since(start)))
	return err
}

func (s *Server) status(c *fiber.Ctx) error {
	user, err := s.session.CurrentUser(c.UserContext())
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return c.SendString("Not signed in. Open /signin to connect your Gmail account.")
	case err != nil:
		s.logger.Error("Failed to fetch current user", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).SendString("Could not reach the email service: " + err.Error())
	}
	return c.SendString(fmt.Sprintf("Signed in as %s (%s). You can return to the chat.", user.Name, user.Email))
}

func (s *Server) signIn(c *fiber.Ctx) error {
	url, err := s.session.LoginURL(c.UserContext())
	if err != nil {
		s.logger.Error("Failed to get login url", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).SendString("Sign-in is unavailable: " + err.Error())
	}
	return c.Redirect(url, fiber.StatusFound)
}

func (s *Server) authSuccess(c *fiber.Ctx) error {
	user, err := s.session.Complete(c.UserContext(), c.Query("token"), c.Query("error"))
	if err != nil {
		s.logger.Warn("Sign-in callback failed", zap.Error(err))
		c.Set("Refresh", "3; url=/signin")
		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed: " + err.Error() + "\nRedirecting to sign-in...")
	}

	c.Set("Refresh", "1; url=/")
	return c.SendString(fmt.Sprintf("Authentication successful. Welcome, %s! Redirecting...", user.Name))
}

func (s *Server) logout(c *fiber.Ctx) error {
	if err := s.session.Logout(c.UserContext()); err != nil {
		s.logger.Error("Failed to log out", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Logout failed: " + err.Error())
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}
