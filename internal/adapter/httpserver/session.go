package httpserver

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Session keys
const (
	sessionName          = "wbdash-session"
	sessionKeyID         = "session_id"
	contextKeySessionID  = "sessionID"
	contextKeyNewSession = "newSession"
)

// requireSession resolves the dashboard session from its cookie, starting a
// new one when the cookie is missing, expired or tampered with. Every
// session's table is isolated from the others.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			// gorilla returns a fresh session alongside decode errors.
			slog.DebugContext(c.Request().Context(), "Discarding unreadable session cookie", "error", err)
		}

		id, _ := session.Values[sessionKeyID].(string)
		if _, parseErr := uuid.Parse(id); parseErr != nil {
			id = uuid.NewString()
			session.Values[sessionKeyID] = id
			c.Set(contextKeyNewSession, true)
			if err := session.Save(c.Request(), c.Response()); err != nil {
				slog.ErrorContext(c.Request().Context(), "Failed to save session", "error", err)
			}
		}

		c.Set(contextKeySessionID, id)
		return next(c)
	}
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(contextKeySessionID).(string)
	return id
}

func isNewSession(c echo.Context) bool {
	isNew, _ := c.Get(contextKeyNewSession).(bool)
	return isNew
}

// endSession expires the session cookie.
func (s *Server) endSession(c echo.Context) error {
	session, _ := s.sessionStore.Get(c.Request(), sessionName)
	session.Options.MaxAge = -1
	return session.Save(c.Request(), c.Response())
}
