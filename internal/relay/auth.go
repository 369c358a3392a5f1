package relay

import (
	"crypto/subtle"
	"strings"

	"github.com/mfulz/linegeist/protocol"
)

// authorized accepts everyone when no users are configured. Otherwise the
// request must name a known user with the matching token. User names are
// compared in lower case since viper folds map keys.
func (s *Server) authorized(auth *protocol.Auth) bool {
	if len(s.users) == 0 {
		return true
	}
	if auth == nil {
		return false
	}
	token, ok := s.users[strings.ToLower(auth.User)]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(auth.Token)) == 1
}

// extractUser returns the request auth user or "unauthenticated".
func extractUser(req *protocol.Request) string {
	if req.Auth != nil {
		return req.Auth.User
	}
	return "unauthenticated"
}
