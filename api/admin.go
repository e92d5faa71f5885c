package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/reviewloop/reviewloop/api/model"
	"github.com/reviewloop/reviewloop/internal/apierror"
)

// bindOptionalJSON binds the body when there is one. Admin actions accept an empty body.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// RunMatchingBatch runs one matching pass inline and returns what it created.
func (a Api) RunMatchingBatch(c *gin.Context) {
	var run model2.RunMatching
	if err := bindOptionalJSON(c, &run); err != nil {
		badRequest(c, err)
		return
	}
	if err := run.ValidateRunMatching(); err != nil {
		badRequest(c, err)
		return
	}

	result, err := a.engine.RunMatchingBatch(c.Request.Context(), run.Max)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EnqueueMatchingBatch hands a matching pass to the workers.
func (a Api) EnqueueMatchingBatch(c *gin.Context) {
	var run model2.RunMatching
	if err := bindOptionalJSON(c, &run); err != nil {
		badRequest(c, err)
		return
	}
	if err := run.ValidateRunMatching(); err != nil {
		badRequest(c, err)
		return
	}

	queue := a.engine.Queue()
	if queue == nil {
		respondError(c, apierror.NewAPIError(apierror.ErrDependency, "background queue is not configured", nil))
		return
	}
	taskID, err := queue.EnqueueMatchingBatch(c.Request.Context(), run.Max)
	if err != nil {
		respondError(c, apierror.NewAPIError(apierror.ErrDependency, "failed to enqueue matching batch", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID})
}

func (a Api) CancelAssignment(c *gin.Context) {
	var cancel model2.CancelAssignment
	if err := bindOptionalJSON(c, &cancel); err != nil {
		badRequest(c, err)
		return
	}

	view, err := a.engine.AdminCancelAssignment(c.Request.Context(), c.Param("id"), cancel.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveFromQueue withdraws a queued item and refunds its credit.
func (a Api) RemoveFromQueue(c *gin.Context) {
	item, err := a.engine.AdminRemoveFromQueue(c.Request.Context(), c.Param("item_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}
