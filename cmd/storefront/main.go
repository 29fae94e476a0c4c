package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"anarchy.ttfm/storefront/auth"
	"anarchy.ttfm/storefront/cmd/storefront/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const shutdownTimeout = 30 * time.Second

func LoadConfig(path string) (cfg Config, err error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	err = yaml.Unmarshal(contents, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

var serve = cli.Command{
	Name:  "serve",
	Usage: "Run the storefront HTTP API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML configuration",
			Value: "config.yaml",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Set debug mode",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) (err error) {
		if c.Bool("debug") {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		cfg, err := LoadConfig(c.String("config"))
		if err != nil {
			return err
		}

		sf, err := cfg.Compile()
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, sf.Close())
		}()

		e := gin.Default()
		var r = router.Router{
			Catalog:       sf.Catalog,
			Orders:        sf.Orders,
			Detection:     sf.Detection,
			Fulfillment:   sf.Fulfillment,
			Auth:          sf.Auth,
			Admin:         sf.Admin,
			Support:       sf.Support,
			WebhookSecret: cfg.WebhookSecret,
			SecureCookies: cfg.SecureCookies,
			Base:          e,
		}
		r.Register()

		server := &http.Server{
			Addr:    cfg.ListenAddress,
			Handler: e,
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			log.Println("INFO|STOREFRONT|LISTENING", cfg.ListenAddress)
			serveErr <- server.ListenAndServe()
		}()

		select {
		case err = <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("failed to serve: %w", err)
		case <-ctx.Done():
		}

		log.Println("INFO|STOREFRONT|SHUTDOWN")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("failed to shutdown: %w", err)
		}
		return nil
	},
}

var hashPassword = cli.Command{
	Name:      "hash-password",
	Usage:     "Print the bcrypt hash of the admin password, read from the argument or the terminal",
	ArgsUsage: "[password]",
	Action: func(ctx context.Context, c *cli.Command) (err error) {
		password := c.Args().First()
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimSpace(string(raw))
		}
		if password == "" {
			return errors.New("empty password")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

var app = cli.Command{
	Name:     "storefront",
	Usage:    "Digital goods storefront with on-chain payment detection",
	Commands: []*cli.Command{&serve, &hashPassword},
}

func main() {
	err := app.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
