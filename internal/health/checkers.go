package health

import (
	"context"

	"github.com/ctm-colima/credential-service/internal/database"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func NewDBChecker(db *gorm.DB) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := database.Ping(ctx, db); err != nil {
			return CheckResult{Name: "database", Healthy: false, Error: err.Error()}
		}
		return CheckResult{Name: "database", Healthy: true}
	})
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := client.Ping(ctx).Err(); err != nil {
			return CheckResult{Name: "redis", Healthy: false, Error: err.Error()}
		}
		return CheckResult{Name: "redis", Healthy: true}
	})
}
