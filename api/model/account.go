package model

import "github.com/reviewloop/reviewloop/model"

type CreateAccount struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Tier      string `json:"tier"`
	Qualified bool   `json:"qualified"`
}

type GrantCredits struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

func (a *CreateAccount) ToAccount() model.Account {
	return model.Account{
		AccountID: a.AccountID,
		Name:      a.Name,
		Tier:      model.Tier(a.Tier),
		Qualified: a.Qualified,
	}
}
