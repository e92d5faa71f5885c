package reviewloop

import (
	"context"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/model"
)

// eligibleReviewers is every qualified account except the owner, anyone who has already
// reviewed the owner, and anyone currently holding an open assignment. The result is sorted
// by account id; an empty result is not an error.
func eligibleReviewers(ctx context.Context, repo database.Repository, item *model.Item) ([]string, error) {
	qualified, err := repo.ListQualifiedAccountIDs(ctx)
	if err != nil {
		return nil, err
	}
	reviewed, err := repo.ListReviewersForOwner(ctx, item.OwnerAccountID)
	if err != nil {
		return nil, err
	}
	busy, err := repo.ListBusyReviewerIDs(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(reviewed)+len(busy)+1)
	excluded[item.OwnerAccountID] = struct{}{}
	for _, id := range reviewed {
		excluded[id] = struct{}{}
	}
	for _, id := range busy {
		excluded[id] = struct{}{}
	}

	eligible := make([]string, 0, len(qualified))
	for _, id := range qualified {
		if _, skip := excluded[id]; !skip {
			eligible = append(eligible, id)
		}
	}
	return eligible, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
