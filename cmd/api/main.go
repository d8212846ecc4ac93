// Command API exposes the multi step authentication HTTP API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	redisLib "github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/oklog/run"
	"github.com/oklog/ulid/v2"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	auth "github.com/eidcore/authsteps"
	"github.com/eidcore/authsteps/internal/authapi"
	"github.com/eidcore/authsteps/internal/checks"
	"github.com/eidcore/authsteps/internal/httpapi"
	"github.com/eidcore/authsteps/internal/issuer"
	"github.com/eidcore/authsteps/internal/kafka"
	"github.com/eidcore/authsteps/internal/notify"
	"github.com/eidcore/authsteps/internal/orchestrator"
	"github.com/eidcore/authsteps/internal/otp"
	"github.com/eidcore/authsteps/internal/postgres"
	redisCache "github.com/eidcore/authsteps/internal/redis"
	"github.com/eidcore/authsteps/internal/registry"
	"github.com/eidcore/authsteps/internal/sessionapi"
	"github.com/eidcore/authsteps/internal/strategy"
	"github.com/eidcore/authsteps/internal/sweeper"
	"github.com/eidcore/authsteps/internal/token"
)

func main() {
	var err error

	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	var configPath string
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	{
		fs.Bool("api.debug", false, "Enable debug logging")
		fs.String("api.http-addr", ":8080", "Address to listen on")
		fs.String("api.allowed-origins", "*", "Comma separated list of allowed origins")
		fs.String("pg.conn-string", "", "Postgres connection string")
		fs.String("redis.conn-string", "", "Redis connection string")
		fs.StringSlice("kafka.brokers", []string{}, "Kafka broker host:port")
		fs.String("registry.base-url", "", "Identity registry base URL")
		fs.String("registry.api-key", "", "Identity registry API key")
		fs.Int("otp.code-length", 6, "OTP code length")
		fs.String("otp.issuer", "authsteps", "TOTP issuer domain")
		fs.Duration("otp.code-expires-in", time.Minute*10, "OTP code expiry time")
		fs.Duration("token.expires-in", time.Hour*2, "JWT token expiry time")
		fs.String("token.issuer", "authsteps", "JWT token issuer")
		fs.String("token.secret", "", "JWT token secret")
		fs.String("token.salt", "", "Salt for derived user identifiers")
		fs.Duration("steps.admission-ttl", time.Minute*3, "Window to reuse a prior successful process")
		fs.Int("checks.minimum-age", 14, "Minimum age to authorize")
		fs.Duration("sweeper.interval", time.Minute*10, "Interval between token expiration sweeps")

		fs.StringVar(&configPath, "config", "", "Path to the config file")
		err = fs.Parse(os.Args[1:])
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		if err != nil {
			logger.Log("message", "failed to parse cli flags", "error", err, "source", "cmd/api")
			os.Exit(1)
		}
	}

	if _, err = os.Stat(configPath); !os.IsNotExist(err) {
		viper.SetConfigFile(configPath)
		err = viper.ReadInConfig()
		if err != nil {
			logger.Log("message", "failed to load config file", "error", err, "source", "cmd/api")
			os.Exit(1)
		}
	}
	if err = viper.BindPFlags(fs); err != nil {
		logger.Log("message", "failed to load cli flags", "error", err, "source", "cmd/api")
		os.Exit(1)
	}

	if viper.GetBool("api.debug") {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	var entropy io.Reader
	{
		random := rand.New(rand.NewSource(time.Now().UnixNano()))
		entropy = ulid.Monotonic(random, 0)
	}

	var pgDB *sql.DB
	{
		pgDB, err = sql.Open("postgres", viper.GetString("pg.conn-string"))
		if err != nil {
			logger.Log(
				"message", "postgres connection failed",
				"error", err,
				"source", "cmd/api",
			)
			os.Exit(1)
		}
		if err = pgDB.Ping(); err != nil {
			logger.Log("message", "postgres did not respond", "error", err, "source", "cmd/api")
			os.Exit(1)
		}
		defer func() {
			if err = pgDB.Close(); err != nil {
				logger.Log(
					"message", "failed to close postgres connection",
					"error", err,
					"source", "cmd/api",
				)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisDB *redisLib.Client
	{
		redisConf, err := redisLib.ParseURL(viper.GetString("redis.conn-string"))
		if err != nil {
			logger.Log("message", "invalid redis configuration", "error", err, "source", "cmd/api")
			os.Exit(1)
		}
		redisDB = redisLib.NewClient(redisConf)
		closeRedis := func() {
			if err = redisDB.Close(); err != nil {
				logger.Log(
					"message", "failed to close redis connection",
					"error", err,
					"source", "cmd/api",
				)
			}
		}

		if _, err = redisDB.Ping(ctx).Result(); err != nil {
			logger.Log("message", "redis connection failed", "error", err, "source", "cmd/api")
			closeRedis()
			os.Exit(1)
		}
		defer closeRedis()
	}

	k := kafka.NewClient(viper.GetStringSlice("kafka.brokers"))
	eventRepo := kafka.NewEventRepository(k)

	repoMngr := postgres.NewClient(
		postgres.WithLogger(logger),
		postgres.WithEntropy(entropy),
		postgres.WithDB(pgDB),
	)

	revocationCache := redisCache.NewCache(redisDB)

	regClient := registry.NewClient(registry.WithConfig(registry.Config{
		BaseURL: viper.GetString("registry.base-url"),
		APIKey:  viper.GetString("registry.api-key"),
	}))

	otpSvc := otp.NewService(
		otp.WithLogger(logger),
		otp.WithCache(revocationCache),
		otp.WithCodeLength(viper.GetInt("otp.code-length")),
		otp.WithCodeExpiry(viper.GetDuration("otp.code-expires-in")),
		otp.WithIssuer(viper.GetString("otp.issuer")),
	)

	tokenSvc := token.NewService(
		token.WithLogger(logger),
		token.WithRepoManager(repoMngr),
		token.WithRevocationCache(revocationCache),
	)

	notifySvc := notify.NewService(k, notify.WithLogger(logger))

	// The signing strategy revokes prolong admissions once signing
	// attempts are exhausted. The orchestrator is built after the
	// registry, so the hook resolves it lazily.
	var stepSvc auth.StepService
	onSigningAttemptsExceeded := func(ctx context.Context, user *auth.User, headers auth.Headers) {
		if stepSvc == nil || user == nil {
			return
		}
		if err := stepSvc.RevokeAdmissions(ctx, auth.SchemaProlong, user.Identifier); err != nil {
			level.Error(logger).Log(
				"source", "cmd/api",
				"message", "fatal: failed to revoke prolong admissions",
				"error", err,
			)
		}
	}

	strategies := strategy.NewRegistry(
		logger,
		strategy.NewBankID(regClient, regClient),
		strategy.NewPortal(otpSvc),
		strategy.NewResidence(regClient, regClient),
		strategy.NewProlong(regClient),
		strategy.NewSigning(regClient, onSigningAttemptsExceeded),
	)

	checkSvc := checks.NewService(
		checks.WithLogger(logger),
		checks.WithRepoManager(repoMngr),
		checks.WithDocumentChecker(regClient),
		checks.WithResidencyChecker(regClient),
		checks.WithMinimumAge(viper.GetInt("checks.minimum-age")),
	)

	stepSvc = orchestrator.NewService(
		orchestrator.WithLogger(logger),
		orchestrator.WithRepoManager(repoMngr),
		orchestrator.WithStrategies(strategies),
		orchestrator.WithChecks(checkSvc),
		orchestrator.WithAdmissionTTL(viper.GetDuration("steps.admission-ttl")),
	)

	issuerSvc := issuer.NewService(
		issuer.WithLogger(logger),
		issuer.WithRepoManager(repoMngr),
		issuer.WithTokenService(tokenSvc),
		issuer.WithEvents(eventRepo),
		issuer.WithNotifier(notifySvc),
		issuer.WithProfileUpdater(regClient),
		issuer.WithSecret(viper.GetString("token.secret")),
		issuer.WithSalt(viper.GetString("token.salt")),
		issuer.WithIssuer(viper.GetString("token.issuer")),
		issuer.WithTokenExpiry(viper.GetDuration("token.expires-in")),
	)

	authAPI := authapi.NewService(
		authapi.WithLogger(logger),
		authapi.WithStepService(stepSvc),
		authapi.WithIssuanceService(issuerSvc),
		authapi.WithOTP(otpSvc),
		authapi.WithNotificationService(notifySvc),
	)

	sessionAPI := sessionapi.NewService(
		sessionapi.WithLogger(logger),
		sessionapi.WithTokenService(tokenSvc),
		sessionapi.WithSecret(viper.GetString("token.secret")),
		sessionapi.WithIssuer(viper.GetString("token.issuer")),
		sessionapi.WithTokenExpiry(viper.GetDuration("token.expires-in")),
	)

	router := mux.NewRouter()
	router.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limiter := httpapi.NewRateLimiter(redisDB)
	secret := []byte(viper.GetString("token.secret"))

	authapi.SetupHTTPHandler(authAPI, router, logger, limiter)
	sessionapi.SetupHTTPHandler(sessionAPI, router, logger, limiter, secret, revocationCache)

	server := http.Server{
		Addr: viper.GetString("api.http-addr"),
		Handler: handlers.CORS(
			handlers.AllowedOrigins(strings.Split(
				viper.GetString("api.allowed-origins"), ","),
			),
			handlers.AllowedHeaders([]string{
				"X-Requested-With",
				"Content-Type",
				"Authorization",
				"Mobile-Uid",
				"Platform-Type",
				"Platform-Version",
				"App-Version",
				"Device-Model",
				"Push-Token",
			}),
			handlers.AllowCredentials(),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS", "HEAD"}),
		)(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	sweep := sweeper.New(
		tokenSvc,
		sweeper.WithLogger(logger),
		sweeper.WithInterval(viper.GetDuration("sweeper.interval")),
	)

	var g run.Group
	{
		g.Add(func() error {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			return fmt.Errorf("signal received: %v", <-sig)
		}, func(err error) {
			logger.Log("message", "program was interrupted", "error", err, "source", "cmd/api")
			cancel()
		})
	}
	{
		g.Add(func() error {
			logger.Log(
				"message", "token sweeper is starting",
				"source", "cmd/api",
			)
			return sweep.Run(ctx)
		}, func(err error) {
			logger.Log(
				"message", "token sweeper was shut down",
				"error", err,
				"source", "cmd/api",
			)
		})
	}
	{
		g.Add(func() error {
			logger.Log(
				"message", "API server is starting",
				"address", server.Addr,
				"source", "cmd/api",
			)
			return server.ListenAndServe()
		}, func(err error) {
			logger.Log(
				"message", "API server was interrupted",
				"error", err,
				"source", "cmd/api",
			)
			logger.Log(
				"message", "API server shut down",
				"error", server.Shutdown(ctx),
				"source", "cmd/api",
			)
		})
	}

	err = g.Run()
	logger.Log("message", "actors stopped", "error", err, "source", "cmd/api")
}
