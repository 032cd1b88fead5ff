package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/planconv/planconv/ui/rest"
	"github.com/planconv/planconv/ui/rest/middleware"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the conversion API over HTTP",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("port", "", "Port to listen on (overrides APP_PORT)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	port := appConfig.App.Port
	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		port = portFlag
	}

	app := fiber.New(fiber.Config{
		AppName:   "planconv",
		Network:   "tcp",
		BodyLimit: int(appConfig.Converter.MaxDocumentSize),
	})

	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(middleware.Recovery())

	if appConfig.App.Debug {
		app.Use(logger.New())
	}

	apiGroup := app.Group(appConfig.App.BasePath + "/api")

	rest.InitRestConversion(apiGroup, conversionUsecase)
	rest.InitRestHealth(apiGroup, healthUsecase)

	// Graceful shutdown handler
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Termination signal received, shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}

		StopApp()
	}()

	if err := app.Listen(":" + port); err != nil {
		logrus.Fatalf("[REST] Server stopped: %v", err)
	}
}
