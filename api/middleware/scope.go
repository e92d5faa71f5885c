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

package middleware

import "strings"

// Resource is the first path segment of a route.
type Resource string

// Action is what an HTTP method does to a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"

	ResourceItems       Resource = "items"
	ResourceAssignments Resource = "assignments"
	ResourceAccounts    Resource = "accounts"
	ResourceQueue       Resource = "queue"
	ResourceAdmin       Resource = "admin"
)

var methodToAction = map[string]Action{
	"GET":    ActionRead,
	"HEAD":   ActionRead,
	"POST":   ActionWrite,
	"PUT":    ActionWrite,
	"PATCH":  ActionWrite,
	"DELETE": ActionDelete,
}

// callerActions lists, per resource, the actions that act on behalf of an account and
// therefore need the caller identity.
var callerActions = map[Resource][]Action{
	ResourceItems:       {ActionWrite},
	ResourceAssignments: {ActionWrite},
}

func resourceFromPath(path string) Resource {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return Resource(parts[0])
}

// RequiresCaller reports whether a request needs an X-Account-ID header. Reading the caller's
// active assignment is the one read that depends on who is asking.
func RequiresCaller(path, method string) bool {
	if strings.TrimSuffix(path, "/") == "/assignments/active" {
		return true
	}
	action := methodToAction[method]
	for _, a := range callerActions[resourceFromPath(path)] {
		if a == action {
			return true
		}
	}
	return false
}
