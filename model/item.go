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

import "time"

type ItemStatus string

const (
	ItemUnlisted ItemStatus = "unlisted"
	ItemQueued   ItemStatus = "queued"
	ItemAssigned ItemStatus = "assigned"
	ItemReviewed ItemStatus = "reviewed"
	ItemRejected ItemStatus = "rejected"
)

// Item is a unit of work awaiting a third-party review.
type Item struct {
	ItemID         string     `json:"item_id"`
	OwnerAccountID string     `json:"owner_account_id"`
	Name           string     `json:"name"`
	Status         ItemStatus `json:"status"`
	QueueEnteredAt *time.Time `json:"queue_entered_at,omitempty"`
	RequeuedAt     *time.Time `json:"requeued_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CanEnterQueue reports whether the owner may (re)submit the item.
func (i *Item) CanEnterQueue() bool {
	switch i.Status {
	case ItemUnlisted, ItemReviewed, ItemRejected:
		return true
	}
	return false
}

// Requeued reports whether the item returned to the queue after a cancelled assignment.
// Requeued items sort ahead of every fresh entry of their tier.
func (i *Item) Requeued() bool {
	return i.Status == ItemQueued && i.RequeuedAt != nil
}

// QueuedItem is a queued item joined with the tier of its owner.
type QueuedItem struct {
	Item
	OwnerTier Tier `json:"owner_tier"`
}
