package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/reviewloop/reviewloop/api/model"
)

func (a Api) CreateAccount(c *gin.Context) {
	var newAccount model2.CreateAccount
	if err := c.ShouldBindJSON(&newAccount); err != nil {
		badRequest(c, err)
		return
	}
	if err := newAccount.ValidateCreateAccount(); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := a.engine.CreateAccount(c.Request.Context(), newAccount.ToAccount())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetAccount returns the account with its balance and current cycle usage.
func (a Api) GetAccount(c *gin.Context) {
	summary, err := a.engine.GetAccountSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a Api) GrantCredits(c *gin.Context) {
	var grant model2.GrantCredits
	if err := c.ShouldBindJSON(&grant); err != nil {
		badRequest(c, err)
		return
	}
	if err := grant.ValidateGrantCredits(); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := a.engine.GrantCredits(c.Request.Context(), c.Param("id"), grant.Amount, grant.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (a Api) GetBalance(c *gin.Context) {
	id := c.Param("id")
	balance, err := a.engine.GetBalance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "balance": balance})
}

// GetLedgerEntries pages through an account's ledger with ?limit=&offset=.
func (a Api) GetLedgerEntries(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		badRequest(c, err)
		return
	}

	entries, err := a.engine.GetLedgerEntries(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
