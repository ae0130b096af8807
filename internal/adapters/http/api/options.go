package api

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAuthToken requires "Authorization: Bearer <token>" on every session
// and data route. Empty disables the check.
func WithAuthToken(token string) Option {
	return func(s *Server) {
		s.authToken = token
	}
}
