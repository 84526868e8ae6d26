package web

import (
	"github.com/fluxorio/slotengine/pkg/core"
	"github.com/valyala/fasthttp"
)

// recovery turns a handler panic into a 500 response
func recovery(logger core.Logger, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(core.Fields{
					"method": string(ctx.Method()),
					"path":   string(ctx.Path()),
					"panic":  r,
				}).Errorf("panic recovered: %v", r)

				ctx.ResetBody()
				writeError(ctx, fasthttp.StatusInternalServerError, "internal_server_error")
			}
		}()
		next(ctx)
	}
}
