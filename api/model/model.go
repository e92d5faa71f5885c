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
package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/reviewloop/reviewloop/model"
)

func validateDateFormat(format, value string) error {
	_, err := time.Parse(format, value)
	if err != nil {
		return errors.New("please format the date as 'YYYY-MM-DDTHH:MM:SS+00:00' (e.g., 2024-04-22T15:28:03+00:00)")
	}
	return nil
}

func (a *CreateAccount) ValidateCreateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&a.Tier, validation.In(string(model.TierStandard), string(model.TierPriority))),
	)
}

func (g *GrantCredits) ValidateGrantCredits() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&g.Description, validation.Length(0, 500)),
	)
}

func (i *CreateItem) ValidateCreateItem() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.Name, validation.Required, validation.Length(1, 200)),
	)
}

// ValidateSubmitReview only checks the request shape. Confirmation and minimum length are
// enforced when the review is recorded.
func (r *SubmitReview) ValidateSubmitReview() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required),
		validation.Field(&r.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&r.SubmittedDate, validation.When(r.SubmittedDate != "", validation.By(func(value interface{}) error {
			dateStr, ok := value.(string)
			if !ok {
				return errors.New("invalid type for submitted date")
			}
			return validateDateFormat(time.RFC3339, dateStr)
		}))),
	)
}

func (p *ReportProblem) ValidateReportProblem() error {
	issueTypes := make([]interface{}, 0, len(model.IssueTypes))
	for _, t := range model.IssueTypes {
		issueTypes = append(issueTypes, string(t.(model.IssueType)))
	}
	return validation.ValidateStruct(p,
		validation.Field(&p.IssueType, validation.Required, validation.In(issueTypes...)),
		validation.Field(&p.Description, validation.Length(0, 2000)),
	)
}

func (m *RunMatching) ValidateRunMatching() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Max, validation.Min(0)),
	)
}
