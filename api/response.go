// Package api exposes the allocation service over HTTP.
package api

import "github.com/gin-gonic/gin"

// Business codes carried in Response.Code. 0 is success.
const (
	CodeBadRequest = 40000
	CodeOutOfStock = 40001
	CodeNotFound   = 40400
	CodeConflict   = 40900
	CodeInternal   = 50000
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Code: 0, Message: "success", Data: data})
}

func fail(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{Code: code, Message: message})
}

// AddBatchRequest is the body of POST /api/v1/batches.
type AddBatchRequest struct {
	Reference string `json:"reference" binding:"required"`
	SKU       string `json:"sku" binding:"required"`
	Qty       int    `json:"qty" binding:"min=0"`
	ETA       string `json:"eta"`
}

// AllocateRequest is the body of POST /api/v1/allocate.
type AllocateRequest struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku" binding:"required"`
	Qty     int    `json:"qty" binding:"required,min=1"`
}

// AllocateResponse is returned on a successful allocation.
type AllocateResponse struct {
	OrderID  string `json:"order_id"`
	BatchRef string `json:"batch_ref"`
}

// DeallocateRequest is the body of POST /api/v1/deallocate.
type DeallocateRequest struct {
	BatchRef string `json:"batch_ref" binding:"required"`
	OrderID  string `json:"order_id" binding:"required"`
	SKU      string `json:"sku" binding:"required"`
	Qty      int    `json:"qty" binding:"required,min=1"`
}

// BatchView is the JSON form of a batch with its derived quantities.
type BatchView struct {
	Reference         string      `json:"reference"`
	SKU               string      `json:"sku"`
	ETA               string      `json:"eta,omitempty"`
	PurchasedQuantity int         `json:"purchased_quantity"`
	AvailableQuantity int         `json:"available_quantity"`
	Allocations       interface{} `json:"allocations"`
}
