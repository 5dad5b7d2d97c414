package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"blog_api/internal/cache"
	"blog_api/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// healthCheck reports each backing service as "ok" or "down". Any failure
// turns the response into a 503 so load balancers can drain the instance.
func healthCheck(db *sql.DB, rdb *redis.Client, conn *amqp.Connection) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]error{
			"database": pingDB(ctx, db),
			"redis":    cache.Ping(ctx, rdb),
			"rabbitmq": queue.CheckConnection(conn),
		}

		status := http.StatusOK
		report := make(gin.H, len(checks))
		for name, err := range checks {
			if err != nil {
				logrus.WithError(err).WithField("component", name).Warn("Health check failed")
				report[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		c.JSON(status, report)
	}
}

func pingDB(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return sql.ErrConnDone
	}
	return db.PingContext(ctx)
}
