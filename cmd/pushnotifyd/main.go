package main

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func main() {
	fx.New(
		fx.Provide(NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(NewWebpushOptions),
		fx.Provide(NewStore),
		fx.Provide(NewIdentityManager),
		fx.Provide(NewDirectory),
		fx.Provide(NewAccountClient),
		fx.Provide(NewDispatcher),
		fx.Provide(NewHTTPServer),

		fx.Invoke(func(*http.Server) {}),
	).Run()
}
