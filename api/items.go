package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/api/middleware"
	model2 "github.com/reviewloop/reviewloop/api/model"
)

// CreateItem registers an unlisted item owned by the caller.
func (a Api) CreateItem(c *gin.Context) {
	var newItem model2.CreateItem
	if err := c.ShouldBindJSON(&newItem); err != nil {
		badRequest(c, err)
		return
	}
	if err := newItem.ValidateCreateItem(); err != nil {
		badRequest(c, err)
		return
	}

	item, err := a.engine.CreateItem(c.Request.Context(), middleware.AccountID(c), newItem.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (a Api) GetItem(c *gin.Context) {
	item, err := a.engine.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// SubmitItem spends one credit and puts the caller's item in the review queue.
func (a Api) SubmitItem(c *gin.Context) {
	item, err := a.engine.SubmitItemToQueue(c.Request.Context(), middleware.AccountID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GetQueue lists queued items in matching order.
func (a Api) GetQueue(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, err)
		return
	}
	items, err := a.engine.QueueSnapshot(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
