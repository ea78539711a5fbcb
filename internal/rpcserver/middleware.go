package rpcserver

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/scroll-tech/rpc-auth-proxy/internal/accesslevel"
	"github.com/scroll-tech/rpc-auth-proxy/internal/adminkeys"
	"github.com/scroll-tech/rpc-auth-proxy/internal/jwtauth"
)

// accessLocalsKey is the fiber.Ctx.Locals key the AccessLevel is stored
// under, the same Locals-based pattern the teacher's JWTAuth middleware
// uses to thread auth state to downstream handlers.
const accessLocalsKey = "accessLevel"

// AuthMiddleware resolves the Authorization header on every inbound request
// to an AccessLevel and attaches it to the request context. It never
// rejects a request on authentication grounds — a missing or invalid
// credential simply resolves to None, and authorization is left entirely
// to the RPC handlers.
func AuthMiddleware(admin *adminkeys.Set, signer *jwtauth.Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(accessLocalsKey, resolveAccess(c.Get("Authorization"), admin, signer))
		return c.Next()
	}
}

func resolveAccess(authHeader string, admin *adminkeys.Set, signer *jwtauth.Signer) accesslevel.AccessLevel {
	if authHeader == "" {
		return accesslevel.None()
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return accesslevel.None()
	}
	token := parts[1]

	if admin.Contains(token) {
		return accesslevel.Full()
	}

	claims, err := signer.Verify(token)
	if err != nil {
		return accesslevel.None()
	}
	return accesslevel.Basic(claims.Address)
}

// accessFromCtx reads back the AccessLevel the middleware attached. It is
// always present because AuthMiddleware runs on every request before
// dispatch; its absence would indicate a wiring bug, so this defaults
// defensively to None rather than panicking mid-request.
func accessFromCtx(c *fiber.Ctx) accesslevel.AccessLevel {
	level, ok := c.Locals(accessLocalsKey).(accesslevel.AccessLevel)
	if !ok {
		return accesslevel.None()
	}
	return level
}
