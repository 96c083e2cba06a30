package fakeapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/shopkit/logger"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceToken  string `json:"device_token"`
}

// Order is a line in the order history.
type Order struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Total  float64 `json:"total"`
}

// Product is a catalogue entry.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CartItem is the body of an add-to-cart call.
type CartItem struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gte=1"`
}

func (s *Server) login(c *gin.Context) {
	s.loginCalls.Add(1)
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	if len(s.users) > 0 && s.users[req.Username] != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	s.issuePair(c, req.Username)
}

func (s *Server) refresh(c *gin.Context) {
	s.refreshCalls.Add(1)
	if s.onRefresh != nil {
		s.onRefresh(c.Request.Context())
	}

	s.mu.Lock()
	fail, delay := s.failRefresh, s.refreshDelay
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.Request.Context().Done():
			return
		}
	}
	if fail {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token rejected"})
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	claims, err := s.tokens.parse(req.RefreshToken, KindRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	// Refresh tokens are single use.
	s.mu.Lock()
	if s.revoked[claims.ID] {
		s.mu.Unlock()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token revoked"})
		return
	}
	s.revoked[claims.ID] = true
	s.mu.Unlock()

	s.log.Debug("token refreshed", logger.Fields("subject", claims.Subject))
	s.issuePair(c, claims.Subject)
}

func (s *Server) logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	s.mu.Lock()
	s.logouts = append(s.logouts, LogoutCall(req))
	s.mu.Unlock()

	if claims, err := s.tokens.parse(req.RefreshToken, KindRefresh); err == nil {
		s.mu.Lock()
		s.revoked[claims.ID] = true
		s.mu.Unlock()
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) issuePair(c *gin.Context, subject string) {
	pair, err := s.tokens.pair(subject, s.accessTTL, s.refreshTTL)
	if err != nil {
		s.log.Error("failed to issue tokens", logger.ErrorFields("issue", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func subject(c *gin.Context) string {
	if claims, ok := c.MustGet("claims").(*Claims); ok {
		return claims.Subject
	}
	return ""
}

func (s *Server) profile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"username": subject(c)})
}

func (s *Server) orders(c *gin.Context) {
	c.JSON(http.StatusOK, []Order{
		{ID: "o-1001", Status: "delivered", Total: 42.5},
		{ID: "o-1002", Status: "shipped", Total: 18},
	})
}

func (s *Server) product(c *gin.Context) {
	id := c.Param("id")
	if id == "0" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such product"})
		return
	}
	c.JSON(http.StatusOK, Product{ID: id, Name: "Product " + id, Price: 9.99})
}

func (s *Server) addCartItem(c *gin.Context) {
	var item CartItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sku": item.SKU, "quantity": item.Quantity, "owner": subject(c)})
}
