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

package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestIsAndUnwrap(t *testing.T) {
	cause := errors.New("serialization failure")
	apiErr := apierror.NewAPIError(apierror.ErrConcurrencyConflict, "retry", cause)
	wrapped := fmt.Errorf("matching: %w", apiErr)

	assert.True(t, apierror.Is(wrapped, apierror.ErrConcurrencyConflict))
	assert.False(t, apierror.Is(wrapped, apierror.ErrNotFound))
	assert.False(t, apierror.Is(nil, apierror.ErrNotFound))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, apierror.ErrorCode(""), apierror.CodeOf(cause))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"NotFound", apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil), http.StatusNotFound},
		{"Conflict", apierror.NewAPIError(apierror.ErrConflict, "Conflict occurred", nil), http.StatusConflict},
		{"StateConflict", apierror.NewAPIError(apierror.ErrStateConflict, "Not ready", nil), http.StatusConflict},
		{"ConcurrencyConflict", apierror.NewAPIError(apierror.ErrConcurrencyConflict, "Lost race", nil), http.StatusConflict},
		{"InvalidInput", apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil), http.StatusBadRequest},
		{"Forbidden", apierror.NewAPIError(apierror.ErrForbidden, "Not yours", nil), http.StatusForbidden},
		{"InsufficientCredits", apierror.NewAPIError(apierror.ErrInsufficientCredits, "Broke", nil), http.StatusPaymentRequired},
		{"CapReached", apierror.NewAPIError(apierror.ErrCapReached, "Cap", nil), http.StatusTooManyRequests},
		{"NoEligibleReviewer", apierror.NewAPIError(apierror.ErrNoEligibleReviewer, "Wait", nil), http.StatusOK},
		{"Dependency", apierror.NewAPIError(apierror.ErrDependency, "Webhook down", nil), http.StatusBadGateway},
		{"InternalServerError", apierror.NewAPIError(apierror.ErrInternalServer, "Internal server error", nil), http.StatusInternalServerError},
		{"Unknown Error", errors.New("Unknown error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}
