package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// CORS пропускает браузерный редактор с любого origin (dev).
func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Content-Type", "Authorization", UserHeader},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	})
}
