/*
Copyright 2024 Reviewloop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/reviewloop/reviewloop"
	"github.com/reviewloop/reviewloop/api/middleware"
	"github.com/reviewloop/reviewloop/config"
)

type Api struct {
	engine *reviewloop.Engine
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	caller := router.Group("/", middleware.Identity())
	caller.POST("/items", a.CreateItem)
	caller.GET("/items/:id", a.GetItem)
	caller.POST("/items/:id/submit", a.SubmitItem)

	caller.POST("/assignments/request", a.RequestAssignment)
	caller.GET("/assignments/active", a.GetActiveAssignment)
	caller.GET("/assignments/:id", a.GetAssignment)
	caller.POST("/assignments/:id/installed", a.MarkInstalled)
	caller.POST("/assignments/:id/review", a.SubmitReview)
	caller.POST("/assignments/:id/problems", a.ReportProblem)

	caller.GET("/accounts/:id", a.GetAccount)
	caller.GET("/accounts/:id/balance", a.GetBalance)
	caller.GET("/accounts/:id/ledger", a.GetLedgerEntries)

	router.GET("/queue", a.GetQueue)

	admin := router.Group("/admin")
	if a.secure() {
		admin.Use(middleware.SecretKeyAuthMiddleware())
	}
	admin.POST("/accounts", a.CreateAccount)
	admin.POST("/accounts/:id/credits", a.GrantCredits)
	admin.POST("/matching/run", a.RunMatchingBatch)
	admin.POST("/matching/enqueue", a.EnqueueMatchingBatch)
	admin.POST("/assignments/:id/cancel", a.CancelAssignment)
	admin.DELETE("/queue/:item_id", a.RemoveFromQueue)

	return a.router
}

func (a Api) secure() bool {
	conf, err := config.Fetch()
	return err == nil && conf.Server.Secure
}

func NewAPI(engine *reviewloop.Engine) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if conf.Tracing.Enabled {
		r.Use(otelgin.Middleware(conf.Tracing.ServiceName))
	}
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})
	if conf.Metrics.Enabled {
		path := conf.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	return &Api{engine: engine, router: r}
}
