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

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop"
	"github.com/reviewloop/reviewloop/api/middleware"
	model2 "github.com/reviewloop/reviewloop/api/model"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/database/memory"
	"github.com/reviewloop/reviewloop/internal/request"
	"github.com/reviewloop/reviewloop/model"
)

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Caller   string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	if s.Caller != "" {
		req.Header.Set(middleware.AccountIDHeader, s.Caller)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response != nil {
		if err := json.NewDecoder(resp.Body).Decode(s.Response); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	router *gin.Engine
	engine *reviewloop.Engine
	store  *memory.Store
	clock  *testClock
}

func setupRouter(t *testing.T, conf *config.Configuration) *testServer {
	t.Helper()
	if conf == nil {
		conf = &config.Configuration{}
	}
	config.MockConfig(conf)

	s := &testServer{
		store: memory.New(),
		clock: &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	engine, err := reviewloop.NewEngine(s.store, reviewloop.WithClock(s.clock.Now))
	require.NoError(t, err)
	s.engine = engine
	s.router = NewAPI(engine).Router()
	return s
}

func (s *testServer) do(t *testing.T, method, route, caller string, payload, response interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = mustJSON(t, payload)
	}
	resp, err := SetUpTestRequest(TestRequest{
		Payload:  body,
		Router:   s.router,
		Response: response,
		Method:   method,
		Route:    route,
		Caller:   caller,
	})
	require.NoError(t, err)
	return resp
}

func (s *testServer) account(t *testing.T, tier model.Tier, qualified bool) *model.Account {
	t.Helper()
	var account model.Account
	resp := s.do(t, http.MethodPost, "/admin/accounts", "", model2.CreateAccount{
		Name:      gofakeit.Name(),
		Tier:      string(tier),
		Qualified: qualified,
	}, &account)
	require.Equal(t, http.StatusCreated, resp.Code)
	return &account
}

func (s *testServer) item(t *testing.T, owner *model.Account) *model.Item {
	t.Helper()
	var item model.Item
	resp := s.do(t, http.MethodPost, "/items", owner.AccountID, model2.CreateItem{Name: gofakeit.AppName()}, &item)
	require.Equal(t, http.StatusCreated, resp.Code)
	return &item
}

// queueDirect puts an item in the queue without the submission checks.
func (s *testServer) queueDirect(t *testing.T, item *model.Item) {
	t.Helper()
	at := s.clock.Now().Add(-time.Hour)
	err := s.store.RunInTx(context.Background(), func(repo database.Repository) error {
		return repo.UpdateItemStatus(context.Background(), item.ItemID, model.ItemQueued, &at)
	})
	require.NoError(t, err)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func mustJSON(t *testing.T, payload interface{}) io.Reader {
	t.Helper()
	buf, err := request.ToJsonReq(payload)
	require.NoError(t, err)
	return buf
}
