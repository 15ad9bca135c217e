package deps

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mattelianyc/microdawgs/internal/auth"
	"github.com/mattelianyc/microdawgs/internal/jobs"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/ratelimit"
	"github.com/mattelianyc/microdawgs/internal/router"
)

// RateLimiter is the slice of the sliding-window limiter the handlers and
// middleware consume. Narrowed to an interface so tests can inject fakes.
type RateLimiter interface {
	CheckClient(ctx context.Context, clientIP string) (*ratelimit.Result, error)
	CheckService(ctx context.Context, serviceName string) (*ratelimit.Result, error)
}

// JobQueue is the job store surface used by the request handlers.
type JobQueue interface {
	Submit(ctx context.Context, request json.RawMessage) (string, error)
	Get(ctx context.Context, jobID string) (*jobs.Job, error)
	UpdateStatus(ctx context.Context, jobID string, status jobs.Status, progress *int, result json.RawMessage) error
	Cancel(ctx context.Context, jobID string) (bool, error)
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
	CountByStatus(ctx context.Context) (map[jobs.Status]int, error)
}

// Dispatcher is the outbound-call surface used by the request handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, target *router.ServiceTarget, path string, payload interface{}) (json.RawMessage, error)
	DispatchRaw(ctx context.Context, target *router.ServiceTarget, path string, body []byte, contentType string) (json.RawMessage, error)
	Get(ctx context.Context, target *router.ServiceTarget, path string) (json.RawMessage, error)
	Broadcast(ctx context.Context, targets []router.ServiceTarget, path string, payload interface{}) []router.BroadcastResult
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	RedisClient *goredis.Client // shared store connection, used by readiness checks
	Auth        *auth.Authenticator
	Limiter     RateLimiter
	Jobs        JobQueue
	Registry    *router.Registry
	Dispatcher  Dispatcher

	MaxUploadBytes    int64         // cap on reference image uploads
	JobMaxAge         time.Duration // sweep cutoff used by the admin sweep endpoint
	TrustProxy        bool          // trust X-Forwarded-For when resolving client IPs
	AdminAllowedCIDRS []string      // optional network guard on /admin routes
}
