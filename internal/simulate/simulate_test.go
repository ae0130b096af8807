package simulate_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/rinktrack/internal/adapters/http/api"
	service "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/simulate"
	"github.com/okian/rinktrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func startAPI(t *testing.T, token string) string {
	t.Helper()
	svc := service.New()
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, api.WithAuthToken(token)).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return srv.URL
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		cfg := &simulate.Config{
			BaseURL:        startAPI(t, "tok"),
			Token:          "tok",
			Games:          4,
			ActionsPerGame: 150,
			DuplicateRate:  0.1,
			Workers:        2,
			Timeout:        5 * time.Second,
			Seed:           7,
			OutputFile:     filepath.Join(t.TempDir(), "scripts.json"),
		}

		Convey("A simulation plays and verifies every game", func() {
			So(simulate.Run(context.Background(), cfg), ShouldBeNil)
			_, err := os.Stat(cfg.OutputFile)
			So(err, ShouldBeNil)
		})

		Convey("A wrong token fails the run", func() {
			cfg.Token = "nope"
			So(simulate.Run(context.Background(), cfg), ShouldNotBeNil)
		})
	})
}
