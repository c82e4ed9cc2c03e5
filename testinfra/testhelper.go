package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"

	"pneumatic/domain"
	"pneumatic/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSecCtx builds a security context for tests. Recognized perms are
// "owner", "admin", "guest" and "superuser".
func BuildSecCtx(uid, accountID types.ID, perms ...string) *session.Context {
	identity := session.Identity{ID: uid, AccountID: accountID, Type: domain.UserTypeUser}
	for _, perm := range perms {
		switch perm {
		case "owner":
			identity.IsAccountOwner = true
		case "admin":
			identity.IsAdmin = true
		case "guest":
			identity.Type = domain.UserTypeGuest
		case "superuser":
			identity.IsSuperuser = true
		}
	}
	return &session.Context{Context: context.Background(), Token: "test-token", Identity: identity}
}

func ExecuteRequest(req *http.Request, router *gin.Engine) (int, http.Header, string) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := w.Result()
	defer func() { _ = resp.Body.Close() }()
	bodyBytes, _ := ioutil.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header, string(bodyBytes)
}
