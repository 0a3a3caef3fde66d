package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/adapters/store"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

type channelView struct {
	*domain.Channel
	Members []*domain.User `json:"members,omitempty"`
}

// channelRoster serves the server channel list a client renders on load.
// Voice entries carry their durable occupancy so sidebars are populated
// before the socket catches up. Private channels are never listed here.
func channelRoster(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		channels, err := st.Channels()
		if err != nil {
			log.Error().Str("module", "adapters.http").Err(err).Msg("list channels")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
			return
		}

		out := make([]channelView, 0, len(channels))
		for _, ch := range channels {
			if ch.Kind.Private() {
				continue
			}
			view := channelView{Channel: ch}
			if ch.Kind == domain.ChannelVoice {
				ids, err := st.Members(ch.ID)
				if err != nil {
					log.Error().Str("module", "adapters.http").Int64("channel", int64(ch.ID)).Err(err).Msg("list voice members")
					c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
					return
				}
				for _, id := range ids {
					user, err := st.FindUser(id)
					if err != nil {
						continue
					}
					view.Members = append(view.Members, user)
				}
			}
			out = append(out, view)
		}

		c.JSON(http.StatusOK, gin.H{"channels": out})
	}
}
