package api

import (
	"net/http"
	"strings"

	"github.com/annel0/layoutd/internal/auth"
	"github.com/annel0/layoutd/internal/service"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// jwtMiddleware проверяет JWT токен в заголовке Authorization
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Отсутствует токен авторизации",
			})
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Неверный формат токена",
			})
			return
		}

		claims, err := rs.auth.Authenticate(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Недействительный токен",
			})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// adminMiddleware проверяет, что пользователь является администратором
func (rs *RestServer) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, GenericResponse{
				Success: false,
				Message: "Отсутствует информация о пользователе",
			})
			return
		}

		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{
				Success: false,
				Message: "Недостаточно прав доступа",
			})
			return
		}

		c.Next()
	}
}

// claimsFrom возвращает claims, установленные jwtMiddleware
func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// actorFrom превращает claims в субъекта операций сервиса
func actorFrom(c *gin.Context) service.Actor {
	claims := claimsFrom(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{Name: claims.Username, Admin: claims.IsAdmin()}
}
