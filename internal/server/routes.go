package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"momo-checkout/internal/domain"
	"momo-checkout/internal/service"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(s.log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Buyer-ID", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.GET("/health", s.healthHandler)

	payments := r.Group("/payments", Buyer())
	payments.POST("/cart", s.cartCheckoutHandler)
	payments.GET("", s.listPaymentsHandler)
	payments.PUT("/:id/order", s.attachOrderHandler)

	return r
}

type cartCheckoutRequest struct {
	Amount       decimal.Decimal      `json:"amount"`
	Number       string               `json:"number"`
	Items        []domain.CartItem    `json:"items"`
	OrderDetails []domain.OrderDetail `json:"orderDetails"`
}

type attachOrderRequest struct {
	OrderID uuid.UUID `json:"orderId"`
}

func (s *Server) cartCheckoutHandler(c *gin.Context) {
	var req cartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid json"})
		return
	}
	if req.Number == "" || len(req.Items) == 0 || len(req.OrderDetails) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing required payment information"})
		return
	}

	res, err := s.checkout.SubmitCartCheckout(c.Request.Context(), domain.CheckoutRequest{
		BuyerID:       buyerID(c),
		ContactNumber: req.Number,
		TotalAmount:   req.Amount,
		CartItems:     req.Items,
		OrderDetails:  req.OrderDetails,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Payment and orders processed successfully",
		"paymentId":     res.PaymentID,
		"transactionId": res.TransactionID,
		"orderIds":      res.OrderIDs,
	})
}

func (s *Server) listPaymentsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	payments, err := s.payments.ListPayments(c.Request.Context(), buyerID(c), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if len(payments) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No payment found", "data": []domain.Payment{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment retrieved successfully",
		"data":    payments,
	})
}

func (s *Server) attachOrderHandler(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid payment id"})
		return
	}
	var req attachOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Payment ID and Order ID are required"})
		return
	}

	if err := s.payments.AttachOrder(c.Request.Context(), buyerID(c), paymentID, req.OrderID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment updated with order ID"})
}

func (s *Server) healthHandler(c *gin.Context) {
	stats := s.db.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		failed     *domain.PaymentFailedError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.As(err, &failed):
		c.JSON(http.StatusPaymentRequired, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, service.ErrPaymentNotFound), errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
	default:
		s.log.Error("request failed", "rid", c.GetString(requestIDKey), "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Error processing payment"})
	}
}
