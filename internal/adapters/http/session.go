package http

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/adapters/auth"
	"github.com/nasty-codes-software/resonance/internal/adapters/store"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

const sessionUserKey = "uid"

// sessionHandler exchanges the browser session for a socket token. First
// visits get a guest identity provisioned on the spot; returning browsers
// keep the identity their session cookie points at.
type sessionHandler struct {
	store  *store.Store
	tokens *auth.TokenService
}

func (h *sessionHandler) handle(c *gin.Context) {
	sess := sessions.Default(c)

	user, err := h.resolveUser(sess)
	if err != nil {
		log.Error().Str("module", "adapters.http").Err(err).Msg("resolve session user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		log.Error().Str("module", "adapters.http").Int64("user", int64(user.ID)).Err(err).Msg("issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *sessionHandler) resolveUser(sess sessions.Session) (*domain.User, error) {
	if raw, ok := sess.Get(sessionUserKey).(int64); ok && raw != 0 {
		user, err := h.store.FindUser(domain.UserID(raw))
		if err == nil {
			return user, nil
		}
		// Stale session pointing at a wiped database; fall through and
		// provision a fresh guest.
		log.Warn().Str("module", "adapters.http").Int64("user", raw).Err(err).Msg("session user missing")
	}

	name := "guest-" + strings.Split(uuid.NewString(), "-")[0]
	user, err := h.store.CreateUser(name, "")
	if err != nil {
		return nil, err
	}
	sess.Set(sessionUserKey, int64(user.ID))
	if err := sess.Save(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "adapters.http").Int64("user", int64(user.ID)).Str("username", name).Msg("guest provisioned")
	return user, nil
}
