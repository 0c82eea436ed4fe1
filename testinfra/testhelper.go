package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	"contraflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// ExecuteRequest drives the router with an httptest recorder and drains the
// response body.
func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := w.Result()
	bodyBytes, _ := ioutil.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, string(bodyBytes), w
}

// BuildSecCtx build security context
func BuildSecCtx(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Token:    "test_token",
		Identity: session.Identity{ID: uid, Name: "user" + uid.String(), Email: "user" + uid.String() + "@test.local"},
		Perms:    perms,
		Context:  context.Background(),
	}
}
