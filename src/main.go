package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"path"

	"rms/src/boot"
	"rms/src/lib"
	"rms/src/services"
	"rms/src/workers"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const apiPrefix string = "/api/v1"

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	gdb := boot.InitDb()

	publisher := services.NewNotificationPublisher(gdb, lib.GetRedisClient(), os.Getenv("EVENTS_CHANNEL"))
	fees := services.NewFeeServiceFromEnv()
	wallets := services.NewWalletService(gdb, publisher)
	bookings := services.NewBookingService(gdb, lib.NewStripeGateway(), fees, wallets, publisher)

	verifier := workers.NewPaymentVerifier(gdb, bookings)
	sweeper := workers.NewExpiredBookingSweeper(gdb, publisher)
	for _, w := range []workers.Worker{verifier, sweeper} {
		if err := w.Start(); err != nil {
			log.Fatalf("Error starting worker %s: %s\n", w.Name(), err.Error())
		}
		defer w.Stop()
	}

	router := setupRouter()
	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOrigins = []string{appHost}
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}
	paymentWebhookRoutes(router, bookings)

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Error starting server: %s\n", err.Error())
	}
}
