package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/api/middleware"
	model2 "github.com/reviewloop/reviewloop/api/model"
)

const idempotencyKeyHeader = "Idempotency-Key"

// RequestAssignment matches the caller with the first queued item they may review.
// A 200 with none_available=true means nothing could be matched right now.
func (a Api) RequestAssignment(c *gin.Context) {
	result, err := a.engine.RequestAssignment(c.Request.Context(), middleware.AccountID(c), c.GetHeader(idempotencyKeyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	if result.NoneAvailable {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a Api) GetAssignment(c *gin.Context) {
	view, err := a.engine.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a Api) GetActiveAssignment(c *gin.Context) {
	view, err := a.engine.GetActiveAssignment(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a Api) MarkInstalled(c *gin.Context) {
	view, err := a.engine.MarkInstalled(c.Request.Context(), c.Param("id"), middleware.AccountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a Api) SubmitReview(c *gin.Context) {
	var review model2.SubmitReview
	if err := c.ShouldBindJSON(&review); err != nil {
		badRequest(c, err)
		return
	}
	if err := review.ValidateSubmitReview(); err != nil {
		badRequest(c, err)
		return
	}

	view, err := a.engine.SubmitReview(c.Request.Context(), c.Param("id"), middleware.AccountID(c), review.ToReviewSubmission())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a Api) ReportProblem(c *gin.Context) {
	var problem model2.ReportProblem
	if err := c.ShouldBindJSON(&problem); err != nil {
		badRequest(c, err)
		return
	}
	if err := problem.ValidateReportProblem(); err != nil {
		badRequest(c, err)
		return
	}

	report, err := a.engine.ReportProblem(c.Request.Context(), c.Param("id"), middleware.AccountID(c), problem.ToProblemReportInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}
