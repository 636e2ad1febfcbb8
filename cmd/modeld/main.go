package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/modelyard/modelyard/cmd/modeld/handlers"
	"github.com/modelyard/modelyard/pkg/auth"
	"github.com/modelyard/modelyard/pkg/configs/server"
	"github.com/modelyard/modelyard/pkg/policy"
	registries "github.com/modelyard/modelyard/pkg/registry/postgres"
	"github.com/modelyard/modelyard/pkg/utils/echoutil"
	"github.com/modelyard/modelyard/pkg/utils/filewatch"
)

func main() {

	configPath := flag.String("config-path", os.Getenv("MODELD_CONFIG"), "server config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	logger := log.New(os.Stderr, "modeld ", log.LstdFlags)

	conf, err := server.Load(*configPath)
	if err != nil {
		logger.Fatalf("can not read configuration: %s", err)
	}

	pol, err := policy.Load(conf.PolicyFile)
	if err != nil {
		logger.Fatalf("can not read policy: %s", err)
	}

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	// the policy lives in the handler for its lifetime. Quit when the
	// file changes so the supervisor restarts us with the new one.
	ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), conf.PolicyFile)
	if err != nil {
		logger.Fatalf("can not watch policy file: %s", err)
	}
	defer cancel()
	context.AfterFunc(ctx, func() {
		logger.Println("policy file is updated. quit to restart server.")
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			logger.Printf("error on shutdown by policy update: %s", err)
		}
	})

	registry, err := registries.New(ctx, conf.Database)
	if err != nil {
		logger.Fatalf("can not connect registry: %s", err)
	}
	defer registry.Close()
	if err := registry.EnsureSchema(ctx); err != nil {
		logger.Fatalf("can not prepare registry schema: %s", err)
	}

	models := e.Group("/api/models")
	models.GET("/:modelName/versions/", handlers.GetVersionsHandler(registry))
	models.GET("/:modelName/versions/:version/", handlers.GetVersionHandler(registry))
	models.GET("/:modelName/aliases/:alias/", handlers.GetAliasHandler(registry))

	guarded := models.Group("", auth.Middleware([]byte(conf.TokenSecret)))
	guarded.POST("/:modelName/versions/:version/approval/", handlers.ApproveHandler(logger, registry, pol))
	guarded.POST("/:modelName/promotion/", handlers.PromoteHandler(logger, registry))

	listen := fmt.Sprintf(":%d", conf.Port)
	if *pcert != "" && *pkey != "" {
		logger.Fatal(e.StartTLS(listen, *pcert, *pkey))
	} else {
		logger.Fatal(e.Start(listen))
	}
}
