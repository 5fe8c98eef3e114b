// Package validation provides input validation helpers for the API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	txnCodeRegex  = regexp.MustCompile(`^[A-Z]{2,8}-\d{14}-[0-9A-F]{6}$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidCurrency checks if a string is a 3-letter uppercase ISO code
func IsValidCurrency(code string) bool {
	return currencyRegex.MatchString(code)
}

// IsValidTransactionCode checks the external transaction code shape
// (prefix + timestamp + random suffix)
func IsValidTransactionCode(code string) bool {
	return txnCodeRegex.MatchString(code)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidAmount checks if a field is a parseable non-negative decimal amount
func ValidAmount(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !money.IsValid(value) {
			return &ValidationError{Field: field, Message: "must be a non-negative decimal amount"}
		}
		return nil
	}
}

// ValidCurrency checks if a field is a 3-letter ISO currency code
func ValidCurrency(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidCurrency(value) {
			return &ValidationError{Field: field, Message: "must be a 3-letter ISO currency code"}
		}
		return nil
	}
}

// ShippingAddress is the minimum deliverable address for a physical order.
type ShippingAddress struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// ValidAddress checks that a shipping address has all required parts.
// An incomplete address is a validation failure, not a partial accept.
func ValidAddress(field string, addr ShippingAddress) func() *ValidationError {
	return func() *ValidationError {
		switch {
		case strings.TrimSpace(addr.FullName) == "":
			return &ValidationError{Field: field + ".fullName", Message: "is required"}
		case strings.TrimSpace(addr.Street) == "":
			return &ValidationError{Field: field + ".street", Message: "is required"}
		case strings.TrimSpace(addr.City) == "":
			return &ValidationError{Field: field + ".city", Message: "is required"}
		case strings.TrimSpace(addr.PostalCode) == "":
			return &ValidationError{Field: field + ".postalCode", Message: "is required"}
		case strings.TrimSpace(addr.Country) == "":
			return &ValidationError{Field: field + ".country", Message: "is required"}
		}
		return nil
	}
}
