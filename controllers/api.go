package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrAccessDenied   = errors.New("Not authenticated")
	ErrBadCredentials = errors.New("Invalid username or password")
	ErrInternalError  = errors.New("Internal server error")
	ErrNoFile         = errors.New("No file provided")
	ErrNoContent      = errors.New("content_list cannot be empty")
)

// errorResponse is the wire shape of every non-2xx reply.
type errorResponse struct {
	Detail string `json:"detail"`
}

func RespondOK(c *gin.Context, obj any) {
	c.JSON(http.StatusOK, obj)
}

func RespondBadRequestErr(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Detail: err.Error()})
}

func RespondInternalErr(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: err.Error()})
}

func RespondCustomStatusErr(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Detail: err.Error()})
}
