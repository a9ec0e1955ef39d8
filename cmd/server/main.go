package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/marketing-hub/internal/api"
	"github.com/ignite/marketing-hub/internal/config"
	"github.com/ignite/marketing-hub/internal/facebookads"
	"github.com/ignite/marketing-hub/internal/googleads"
	"github.com/ignite/marketing-hub/internal/googleanalytics"
	"github.com/ignite/marketing-hub/internal/pkg/httpretry"
	"github.com/ignite/marketing-hub/internal/pkg/ratelimit"
	"github.com/ignite/marketing-hub/internal/platform"
	"github.com/ignite/marketing-hub/internal/unified"

	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

// sharedWaiter builds the optional cross-process quota for one platform.
func sharedWaiter(rdb *redis.Client, p platform.Platform, rl config.RateLimitConfig) httpretry.Waiter {
	if rdb == nil {
		return nil
	}
	return redisWaiter{ratelimit.NewRedisLimiter(rdb, p.String(), ratelimit.Config{
		PerMinute:  rl.PerMinute,
		PerHour:    rl.PerHour,
		PerDay:     rl.PerDay,
		RetryAfter: rl.RetryAfter(),
	})}
}

// redisWaiter adapts the shared limiter to the transport's Waiter interface.
type redisWaiter struct {
	limiter *ratelimit.RedisLimiter
}

func (w redisWaiter) Wait(ctx context.Context) error { return w.limiter.Wait(ctx) }

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("WARNING: redis unreachable, falling back to local rate limits: %v", err)
			rdb = nil
		} else {
			log.Println("Shared redis rate limiting enabled")
		}
	}

	var clients []platform.Client
	if cfg.GoogleAds.Enabled {
		clients = append(clients, googleads.NewClient(cfg.GoogleAds,
			sharedWaiter(rdb, platform.GoogleAds, cfg.GoogleAds.RateLimit)))
	}
	if cfg.FacebookAds.Enabled {
		clients = append(clients, facebookads.NewClient(cfg.FacebookAds,
			sharedWaiter(rdb, platform.FacebookAds, cfg.FacebookAds.RateLimit)))
	}
	if cfg.GoogleAnalytics.Enabled {
		clients = append(clients, googleanalytics.NewClient(cfg.GoogleAnalytics,
			sharedWaiter(rdb, platform.GoogleAnalytics, cfg.GoogleAnalytics.RateLimit)))
	}
	if len(clients) == 0 {
		log.Fatal("No platforms enabled; enable at least one in config/config.yaml")
	}

	uc := unified.New(clients...)

	connectCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	errs := uc.ConnectAll(connectCtx)
	cancel()
	for p, err := range errs {
		log.Printf("WARNING: %s failed to connect: %v", p, err)
	}
	log.Printf("Connected platforms: %v", uc.ConnectedPlatforms())

	server := api.NewServer(cfg.Server, uc)
	addr := fmt.Sprintf("%s:%d", host, port)

	go func() {
		log.Printf("Marketing API listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	uc.DisconnectAll(shutdownCtx)
	log.Println("Shutdown complete")
}
