package server

import (
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/cyberguard/guardian/pkg/config"
	handlers "github.com/cyberguard/guardian/pkg/handlers/http"
	wsHandlers "github.com/cyberguard/guardian/pkg/handlers/websocket"
)

type (
	ApiServerDI struct {
		HandlerTransport   handlers.HandlerTransport
		WebsocketTransport *wsHandlers.HandlerTransportDTO
		Config             *config.Config
		Logger             *logrus.Logger
	}
	ApiServer struct {
		*BaseServer
		handlerTransport   handlers.HandlerTransport
		websocketTransport *wsHandlers.HandlerTransportDTO
	}
)

func NewApiServer(di ApiServerDI) *ApiServer {
	return &ApiServer{
		BaseServer:         NewBaseServer(di.Config, di.Logger),
		handlerTransport:   di.HandlerTransport,
		websocketTransport: di.WebsocketTransport,
	}
}

func (s *ApiServer) Run() error {
	s.setupRoutes()
	s.setupMetricsEndpoint()
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.Logger.WithField("addr", addr).Info("Starting api server")
	return s.Router.Listen(addr)
}

func (s *ApiServer) setupRoutes() {
	s.Router.Use(recover.New())

	s.Router.Get("/", s.handlerTransport.RootHandler.Handle)
	s.Router.Get("/health", s.handlerTransport.HealthHandler.Handle)
	s.Router.Get("/stats", s.handlerTransport.StatsHandler.Handle)
	s.Router.Post("/reset-metrics", s.handlerTransport.ResetMetricsHandler.Handle)

	v1 := s.Router.Group("/api/v1")
	{
		platforms := v1.Group("/platforms")
		{
			platforms.Get("", s.handlerTransport.ListPlatformsHandler.Handle)
			platforms.Post("/:platform/connect", s.handlerTransport.ConnectPlatformHandler.Handle)
			platforms.Delete("/:platform", s.handlerTransport.DisconnectPlatformHandler.Handle)
		}
	}

	// websocket upgrade gate
	s.Router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.Router.Get("/ws", websocket.New(func(c *websocket.Conn) {
		s.websocketTransport.EventsHandler.Handle(c)
	}))
}

func (s *ApiServer) Shutdown() error {
	return s.Router.Shutdown()
}
