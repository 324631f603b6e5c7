package main

import (
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"

	"goveiss/internal/common"
	"goveiss/internal/config"
)

type RequestHandler struct {
	Db       *sql.DB
	Notifier *common.Notifier
	Config   *config.Config
	Logger   *slog.Logger
}

func contains(list []string, e string) bool {
	for _, s := range list {
		if s == e {
			return true
		}
	}
	return false
}

// TokenAuthMiddleware accepts the tokens stored in the database and the one
// configured in auth.token.
func (this *RequestHandler) TokenAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens, err := common.Tokens(this.Db)
		if err != nil {
			this.Logger.Error("could not load API tokens", "error", err)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if this.Config.Auth.Token != "" {
			tokens = append(tokens, this.Config.Auth.Token)
		}
		token := c.GetHeader("X-Token")
		if token == "" || !contains(tokens, token) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func newRouter(rh *RequestHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies(nil)

	router.GET("/sessions", rh.GetSessions)
	router.GET("/session/:id", rh.GetSession)
	router.GET("/session/:id/sets", rh.GetSets)
	router.DELETE("/session/:id", rh.TokenAuthMiddleware(), rh.DeleteSession)

	router.GET("/set/:id", rh.GetSet)
	router.GET("/setdata/:id", rh.GetSetData)

	router.PUT("/capture", rh.TokenAuthMiddleware(), rh.PutCapture)

	router.GET("/device/:id", rh.GetDevice)
	router.PUT("/device", rh.TokenAuthMiddleware(), rh.PutDevice)
	router.DELETE("/device/:id", rh.TokenAuthMiddleware(), rh.DeleteDevice)

	return router
}

func main() {
	var opts struct {
		ConfigFile   string `short:"c" long:"config" description:"YAML config file path"`
		DatabaseFile string `short:"d" long:"database" description:"SQLite3 database file path"`
		Host         string `short:"h" long:"host" description:"Host to bind on"`
		Port         int    `short:"p" long:"port" description:"Port to bind on"`
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}
	if opts.DatabaseFile != "" {
		cfg.Database.Path = opts.DatabaseFile
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.HTTPPort = opts.Port
	}
	logger := cfg.Log.NewLogger()

	db, err := common.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("could not open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	n := common.NewNotifier(cfg.Notify, logger)
	defer n.Close()

	if level, _ := cfg.Log.SlogLevel(); level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	rh := &RequestHandler{Db: db, Notifier: n, Config: cfg, Logger: logger}
	router := newRouter(rh)
	router.Run(net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort)))
}
