// Package router assembles the fiber middleware stack and the single
// JSON-RPC route this proxy exposes, in the same global-middleware-then-
// routes shape the teacher's SetupRoutes uses.
package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/scroll-tech/rpc-auth-proxy/internal/adminkeys"
	"github.com/scroll-tech/rpc-auth-proxy/internal/jwtauth"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcerr"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcserver"
	"github.com/scroll-tech/rpc-auth-proxy/pkg/logger"
)

// CustomErrorHandler renders uncaught errors (panics recovered by
// recover.New, fiber framework errors) as a JSON-RPC internal error instead
// of fiber's default HTML error page — the panic-to-error mapping the
// design notes require for malformed raw transactions and the like.
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	logger.Error("request error",
		"path", c.Path(),
		"method", c.Method(),
		"status", code,
		"error", err.Error(),
		"request_id", c.Locals("requestid"),
	)

	return c.Status(code).JSON(fiber.Map{
		"jsonrpc": "2.0",
		"id":      nil,
		"error":   rpcerr.Internal(err.Error()),
	})
}

// SetupRoutes wires the global middleware stack and the single JSON-RPC
// POST route onto app.
func SetupRoutes(app *fiber.App, rpc *rpcserver.Server, admin *adminkeys.Set, signer *jwtauth.Signer) {
	app.Use(requestid.New(requestid.Config{
		Generator: func() string { return uuid.NewString() },
	}))
	app.Use(helmet.New())
	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "POST,OPTIONS",
		AllowHeaders:     "Authorization,Content-Type",
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        200,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Get("x-forwarded-for", c.IP())
		},
	}))

	app.Use(requestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "time": time.Now().Unix()})
	})

	app.Use(rpcserver.AuthMiddleware(admin, signer))
	app.Post("/", rpc.FiberHandler)
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
			"request_id", c.Locals("requestid"),
		)
		return err
	}
}
