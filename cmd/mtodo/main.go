package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/xxxsen/mtodo/internal/config"
	"github.com/xxxsen/mtodo/internal/db"
	"github.com/xxxsen/mtodo/internal/handler"
	"github.com/xxxsen/mtodo/internal/job"
	"github.com/xxxsen/mtodo/internal/middleware"
	"github.com/xxxsen/mtodo/internal/pkg/jwt"
	"github.com/xxxsen/mtodo/internal/repo"
	"github.com/xxxsen/mtodo/internal/schedule"
	"github.com/xxxsen/mtodo/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "mtodo",
		Short:         "mtodo backend server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (optional, env overrides apply)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mtodo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			logutil.GetLogger(cmd.Context()).Info("migrations applied")
			return nil
		},
	}

	var (
		email         string
		name          string
		passwordStdin bool
	)
	addUserCmd := &cobra.Command{
		Use:   "adduser",
		Short: "create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			plain, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), passwordStdin)
			if err != nil {
				return err
			}
			codec, err := newCodec(cfg)
			if err != nil {
				return err
			}
			var namePtr *string
			if name != "" {
				namePtr = &name
			}
			auth := service.NewAuthService(repo.NewUserRepo(conn), codec)
			user, err := auth.Register(cmd.Context(), strings.TrimSpace(email), namePtr, plain)
			if err != nil {
				return fmt.Errorf("add user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", user.ID, user.Email)
			return nil
		},
	}
	addUserCmd.Flags().StringVar(&email, "email", "", "email address")
	addUserCmd.Flags().StringVar(&name, "name", "", "display name")
	addUserCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = addUserCmd.MarkFlagRequired("email")

	var delEmail string
	delUserCmd := &cobra.Command{
		Use:   "deluser",
		Short: "delete a user account and its todos",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := bootstrap(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			users := repo.NewUserRepo(conn)
			user, err := users.FindByEmail(cmd.Context(), strings.TrimSpace(delEmail))
			if err != nil {
				return fmt.Errorf("find user: %w", err)
			}
			if err := users.Delete(cmd.Context(), user.ID); err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted user %d <%s>\n", user.ID, user.Email)
			return nil
		},
	}
	delUserCmd.Flags().StringVar(&delEmail, "email", "", "email address")
	_ = delUserCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(runCmd, migrateCmd, addUserCmd, delUserCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

// bootstrap loads config, initialises logging, opens the database and
// brings its schema up to date.
func bootstrap(ctx context.Context, configPath string) (*config.Config, *db.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(ctx).Info("config loaded",
		zap.String("config", configPath),
		zap.String("db_driver", cfg.Database.Driver),
	)
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func newCodec(cfg *config.Config) (*jwt.Codec, error) {
	codec, err := jwt.NewCodec(
		[]byte(cfg.JWT.Secret),
		cfg.JWT.Algorithm,
		time.Duration(cfg.JWT.AccessExpiresSeconds)*time.Second,
		time.Duration(cfg.JWT.RefreshExpiresSeconds)*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}
	return codec, nil
}

func runServer(cfg *config.Config, conn *db.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.String("app", cfg.AppName),
		zap.Int("port", cfg.Port),
		zap.String("api_prefix", cfg.APIPrefix),
		zap.Strings("cors_origins", cfg.CORS),
	)

	codec, err := newCodec(cfg)
	if err != nil {
		return err
	}
	userRepo := repo.NewUserRepo(conn)
	todoRepo := repo.NewTodoRepo(conn)

	identityService := service.NewIdentityService(userRepo, codec)
	authService := service.NewAuthService(userRepo, codec)
	todoService := service.NewTodoService(todoRepo)

	deps := handler.RouterDeps{
		Auth:     handler.NewAuthHandler(authService),
		Todos:    handler.NewTodoHandler(todoService),
		Health:   handler.NewHealthHandler(cfg.AppName, conn),
		Identity: identityService,
	}

	scheduler := schedule.NewCronScheduler()
	if spec := cfg.HealthSpec(); spec != "" {
		if err := scheduler.AddJob(job.NewDBHealthJob(conn, 0), spec); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.Register(group, cfg.APIPrefix, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func readPassword(in io.Reader, prompt io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal, use --password-stdin")
	}
	fmt.Fprint(prompt, "Password: ")
	plain, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(plain), nil
}
