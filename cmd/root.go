package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/planconv/planconv/core/config"
	"github.com/planconv/planconv/core/database"
	domainConversion "github.com/planconv/planconv/domains/conversion"
	domainHealth "github.com/planconv/planconv/domains/health"
	"github.com/planconv/planconv/infrastructure/converter"
	"github.com/planconv/planconv/infrastructure/fetcher"
	"github.com/planconv/planconv/pkg/convworker"
	"github.com/planconv/planconv/repository"
	"github.com/planconv/planconv/usecase"
)

var (
	appConfig *config.Config
	appDB     *gorm.DB

	// Shared infrastructure
	conversionPool *convworker.ConversionPool

	// Usecases
	conversionUsecase domainConversion.IConversionUsecase
	healthUsecase     domainHealth.IHealthUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planconv",
	Short: "Content-addressed PDF to JSON conversion service",
	Long: `planconv converts submitted PDF documents into structured JSON and
memoizes results by content hash, so identical documents are only ever
converted once even across concurrent requests and multiple instances
sharing one database.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initApp)
}

// initApp performs the process-wide initialization: configuration, the
// shared database pool, the conversion worker pool, and the usecases built
// on top of them. It runs once, before any command serves traffic.
func initApp() {
	var err error

	appConfig, err = config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if appConfig.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	appDB, err = database.NewDatabase(appConfig)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	cacheRepo := repository.NewCacheGormRepository(appDB)
	if err := cacheRepo.Init(context.Background()); err != nil {
		logrus.Fatalf("Failed to migrate conversion cache schema: %v", err)
	}

	conversionPool = convworker.NewConversionPool(appConfig.Converter.Workers, appConfig.Converter.QueueSize)
	conversionPool.Start()

	pdfConverter := converter.NewPDFConverter(appConfig.Converter.MaxDocumentSize)
	documentFetcher := fetcher.NewHTTPFetcher(
		appConfig.Fetcher.Timeout,
		appConfig.Fetcher.AuthHeader,
		appConfig.Converter.MaxDocumentSize,
	)

	conversionUsecase = usecase.NewConversionUsecase(
		cacheRepo,
		pdfConverter,
		documentFetcher,
		conversionPool,
		appConfig.Cache,
		appConfig.Converter,
	)
	healthUsecase = usecase.NewHealthUsecase(appDB, appConfig.App.Version)

	logrus.Infof("planconv %s initialized (db driver: %s)", appConfig.App.Version, appConfig.Database.Driver)
}

// StopApp tears down the shared subsystems on shutdown.
func StopApp() {
	if conversionPool != nil {
		conversionPool.Stop()
	}
	if appDB != nil {
		if err := database.Close(appDB); err != nil {
			logrus.Errorf("Error closing database: %v", err)
		}
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalln(err)
	}
}
