package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spigell/scoreit/internal/features"
	"github.com/spigell/scoreit/internal/logger"
	"github.com/spigell/scoreit/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "address to listen on (default from server.host)")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default from server.port)")

	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := mustApp(ctx, appParts{search: true})
	defer a.Close(context.Background())

	a.Logger.Info("starting the scoreit", zap.String("version", version), zap.Any("model", a.Model.Status()))

	srv, err := server.New(server.Deps{
		Search:   a.Search,
		Ranker:   a.Ranker,
		Features: features.Overlap{},
		Model:    a.Model,
		Metrics:  a.Metrics,
	}, logger.Component(a.Logger, "http"), a.Config.Server)
	if err != nil {
		a.Logger.Fatal("creating http server", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error("server stopped", zap.Error(err))
		return
	}
	a.Logger.Info("server stopped")
}
