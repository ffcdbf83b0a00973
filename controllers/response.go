package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/middleware"
	"storefront/services"
)

// RegisterValidators installs the custom binding rules used by the request
// bodies: "category" accepts only names for which valid returns true.
func RegisterValidators(valid func(string) bool) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return valid(fl.Field().String())
	})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, "Access denied"
	case errors.Is(err, services.ErrConcurrentUpdate):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInventoryDivergence):
		message = "Order status updated but stock could not be adjusted"
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		slog.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(),
			"requestId", middleware.GetRequestID(c),
			"err", err,
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

// respondBindError reports a malformed or invalid request body.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = validationMessage(fe)
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Validation failed",
			"fields":  fields,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
}

// fieldPath drops the top-level struct name: "ProductInput.Images[0].URL" -> "Images[0].URL".
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "category":
		return "is not a known category"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// paramID parses an ObjectID path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid " + label + " ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// requester builds the caller identity from the verified token.
func requester(c *gin.Context) (services.Requester, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Token required"})
		return services.Requester{}, false
	}
	id, err := claims.ObjectID()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
		return services.Requester{}, false
	}
	return services.Requester{UserID: id, Admin: claims.IsAdmin()}, true
}
