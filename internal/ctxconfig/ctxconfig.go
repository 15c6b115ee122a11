package ctxconfig

import (
	"context"
	"net/http"

	"fknsrs.biz/p/vidvault/internal/config"
)

// context registration

var cellKey int

func WithCell(ctx context.Context, c *config.Cell) context.Context {
	return context.WithValue(ctx, &cellKey, c)
}

func GetCell(ctx context.Context) *config.Cell {
	if v := ctx.Value(&cellKey); v != nil {
		return v.(*config.Cell)
	}

	return nil
}

// GetConfig reads the configuration current at the time of the call. Callers
// must not cache the result across requests; the video root can move.
func GetConfig(ctx context.Context) config.Config {
	if c := GetCell(ctx); c != nil {
		return c.Get()
	}

	return config.Config{}
}

// middleware

func Register(c *config.Cell) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(WithCell(r.Context(), c)))
	}
}
