package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"contraflow/misc"
	"contraflow/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
)

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// User is the operator account of the admin surface, not a signing party.
type User struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Secret string   `json:"secret"`
	Perms  string   `json:"perms"` // comma separated roles
}

func (u *User) TableName() string {
	return "users"
}

func RegisterSessionsHandler(r *gin.Engine) {
	r.POST("/v1/sessions", SimpleLoginHandler)
	r.GET("/v1/session-users", UserInfoQueryHandler)
}

func UserInfoQueryHandler(c *gin.Context) {
	secCtx := ExtractSessionFromGinContext(c)
	if secCtx.Token == "" {
		c.JSON(http.StatusUnauthorized, &misc.ErrorBody{Code: "common.unauthenticated", Message: "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, &secCtx.Identity)
}

func SimpleLoginHandler(c *gin.Context) {
	login := LoginRequest{}
	if err := c.ShouldBindBodyWith(&login, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: err.Error()})
		return
	}

	user := User{}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	if err := db.Where(&User{Name: login.Name, Secret: HashSha256(login.Password)}).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, &misc.ErrorBody{Code: "common.unauthenticated", Message: "unauthenticated"})
			return
		}
		c.JSON(http.StatusInternalServerError, &misc.ErrorBody{Code: "common.internal_server_error", Message: err.Error()})
		return
	}

	token := uuid.New().String()
	secCtx := Session{Token: token, Identity: Identity{ID: user.ID, Name: user.Name, Email: user.Email}}
	if user.Perms != "" {
		secCtx.Perms = strings.Split(user.Perms, ",")
	}
	TokenCache.Set(token, &secCtx, cache.DefaultExpiration)

	c.SetCookie(KeySecToken, token, int(TokenExpiration/time.Second), "/", "", false, false)
	c.JSON(http.StatusOK, &secCtx.Identity)
}

func HashSha256(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
