package router

type config struct {
	routeMatch func(pattern, topic string) bool
}

type Option func(*config)

// WithRouteMatcher replaces the dotted wildcard matcher.
func WithRouteMatcher(matcher func(pattern, topic string) bool) Option {
	return func(c *config) {
		if matcher != nil {
			c.routeMatch = matcher
		}
	}
}
