package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/module"
)

type catalog struct{ err error }

func (c *catalog) Ping(context.Context) error { return c.err }

func TestHealth(t *testing.T) {
	lc := lifecycle.New()
	db := &catalog{}

	router := module.NewRouter()
	newHealth(lc, db).register(router)

	get := func(path string) (int, string) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		return rec.Code, body["status"]
	}

	code, status := get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status)

	code, status = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", status)

	lc.WaitForStartup()
	code, status = get("/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", status)

	db.err = errors.New("connection refused")
	code, status = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "catalog unavailable", status)

	db.err = nil
	require.NoError(t, lc.Shutdown(time.Second))
	code, _ = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code, "not ready once shutdown begins")
}
