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

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	KeyHeader       = "X-Reviewloop-Key"
	AccountIDHeader = "X-Account-ID"

	accountIDKey = "accountID"
)

// Identity reads the calling account from the X-Account-ID header. Authenticating that
// account is left to the platform in front of the engine; this only makes the caller
// explicit on every write.
//
// Responses:
// - 401 Unauthorized: when the route acts for an account and the header is missing.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := strings.TrimSpace(c.GetHeader(AccountIDHeader))
		if accountID == "" && RequiresCaller(c.Request.URL.Path, c.Request.Method) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Caller required. Use X-Account-ID header"})
			return
		}
		if accountID != "" {
			c.Set(accountIDKey, accountID)
		}
		c.Next()
	}
}

// AccountID returns the caller set by Identity.
func AccountID(c *gin.Context) string {
	return c.GetString(accountIDKey)
}
