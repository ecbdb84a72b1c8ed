package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"

	"github.com/vnkhanh/audit-server/builder"
	"github.com/vnkhanh/audit-server/config"
	"github.com/vnkhanh/audit-server/models"
	"github.com/vnkhanh/audit-server/routes"
	"github.com/vnkhanh/audit-server/services"
	"github.com/vnkhanh/audit-server/utils"
)

func main() {
	root := &cli.Command{
		Name:  "audit-server",
		Usage: "Inspection template and audit server",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
			tokenCommand(),
			importFormCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, config.Load())
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "listen port (overrides PORT)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := config.Load()
			if p := c.String("port"); p != "" {
				cfg.Port = p
			}
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	// Kết nối DB + AutoMigrate
	config.ConnectDB(cfg)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowWildcard:    true,
	}))

	r.GET("/", func(c *gin.Context) {
		c.String(200, "Audit server is running")
	})

	if err := r.SetTrustedProxies(nil); err != nil {
		return err
	}

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()
	routes.SetupRoutes(srvCtx, r, cfg)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on port %s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openDB dùng cho các lệnh một lần: mở + migrate, không đụng tới config.DB.
func openDB() (*gorm.DB, error) {
	db, err := config.OpenDatabase(config.Load())
	if err != nil {
		return nil, err
	}
	if err := config.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update database tables",
		Action: func(ctx context.Context, c *cli.Command) error {
			if _, err := openDB(); err != nil {
				return err
			}
			log.Println("migrated successfully")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert demo users and the demo inspection template",
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			return services.Seed(ctx, db)
		},
	}
}

func findUser(ctx context.Context, db *gorm.DB, email string) (*models.User, error) {
	var u models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", services.ErrUserNotFound, email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Print a bearer token for an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			u, err := findUser(ctx, db, c.String("email"))
			if err != nil {
				return err
			}
			if !utils.CheckPassword(u.Password, c.String("password")) {
				return errors.New("wrong password")
			}
			token, err := utils.GenerateToken(u.ID, u.Role)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func importFormCommand() *cli.Command {
	return &cli.Command{
		Name:  "import-form",
		Usage: "Turn a form saved by the builder into a template",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Required: true, Usage: "form JSON written by the builder"},
			&cli.StringFlag{Name: "email", Required: true, Usage: "owner of the new template"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			form, err := builder.LoadFile(c.String("file"))
			if err != nil {
				return err
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			u, err := findUser(ctx, db, c.String("email"))
			if err != nil {
				return err
			}

			store := builder.NewStore(builder.TemplateSaver{
				Templates: services.NewTemplateService(db),
				CreatorID: u.ID,
			}, nil)
			store.Replace(form)
			res, err := store.Save(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("template %s created from form %s\n", res.Location, form.ID)
			return nil
		},
	}
}
