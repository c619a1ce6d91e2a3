package middleware

import (
	"github.com/MrEthical07/carebook"
	"github.com/MrEthical07/carebook/session"
	"github.com/gin-gonic/gin"
)

// PageKey is the gin context key holding the request's *carebook.Page.
const PageKey = "carebook.page"

// GinSession is the gin form of [Session].
func GinSession(portal *carebook.Portal, opts ...Option) gin.HandlerFunc {
	o := buildOptions(opts)
	return func(c *gin.Context) {
		r, ok := openPage(portal, o, c.Writer, c.Request, c.ClientIP())
		if !ok {
			c.Abort()
			return
		}
		c.Request = r
		setPage(c)
		c.Next()
	}
}

// GinGuard is the gin form of [Guard].
func GinGuard(portal *carebook.Portal, required session.Role, opts ...Option) gin.HandlerFunc {
	o := buildOptions(opts)
	return func(c *gin.Context) {
		r, release, ok := guardRequest(portal, o, required, c.Writer, c.Request, c.ClientIP())
		if !ok {
			c.Abort()
			return
		}
		defer release()
		c.Request = r
		setPage(c)
		c.Next()
	}
}

// GinShell is the gin form of [Shell].
func GinShell(portal *carebook.Portal, opts ...Option) gin.HandlerFunc {
	o := buildOptions(opts)
	return func(c *gin.Context) {
		r, ok := openPage(portal, o, c.Writer, c.Request, c.ClientIP())
		if !ok {
			c.Abort()
			return
		}
		c.Request = r
		setPage(c)
		if shellForward(portal, o, c.Writer, r) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// PageFromGin returns the page opened by one of the gin adapters.
func PageFromGin(c *gin.Context) (*carebook.Page, bool) {
	if v, ok := c.Get(PageKey); ok {
		if page, ok := v.(*carebook.Page); ok {
			return page, true
		}
	}
	return PageFromContext(c.Request.Context())
}

func setPage(c *gin.Context) {
	if page, ok := PageFromContext(c.Request.Context()); ok {
		c.Set(PageKey, page)
	}
}
