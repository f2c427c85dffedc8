package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrTooManyRequests = 1006
	ErrBadRequest      = 1007
	ErrServiceUnavail  = 1008
	ErrTimeout         = 1009

	// Research errors (2000-2999)
	ErrResearchInvalidKeyword = 2000
	ErrResearchUnknownSource  = 2001
	ErrResearchSourceBlocked  = 2002
	ErrResearchRateLimited    = 2003
	ErrResearchSourceFailed   = 2004
	ErrResearchTooManyInputs  = 2005

	// Cache errors (3000-3999)
	ErrCacheUnavailable = 3000

	// Clustering and scoring errors (4000-4999)
	ErrClusterNotEnoughData = 4000
	ErrScoreFetchFailed     = 4001

	// Run history errors (5000-5999)
	ErrRunNotFound     = 5000
	ErrExportFormat    = 5001
	ErrRunStoreFailure = 5002
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},
	ErrTimeout:         {ErrTimeout, http.StatusGatewayTimeout, "Request timed out"},

	ErrResearchInvalidKeyword: {ErrResearchInvalidKeyword, http.StatusBadRequest, "Invalid research input"},
	ErrResearchUnknownSource:  {ErrResearchUnknownSource, http.StatusBadRequest, "Unknown or unconfigured source category"},
	ErrResearchSourceBlocked:  {ErrResearchSourceBlocked, http.StatusBadGateway, "Source blocked the request"},
	ErrResearchRateLimited:    {ErrResearchRateLimited, http.StatusTooManyRequests, "Source rate limit exceeded"},
	ErrResearchSourceFailed:   {ErrResearchSourceFailed, http.StatusBadGateway, "Source request failed"},
	ErrResearchTooManyInputs:  {ErrResearchTooManyInputs, http.StatusBadRequest, "Too many keywords in one request"},

	ErrCacheUnavailable: {ErrCacheUnavailable, http.StatusServiceUnavailable, "Cache unavailable"},

	ErrClusterNotEnoughData: {ErrClusterNotEnoughData, http.StatusUnprocessableEntity, "Not enough keywords with embeddings to cluster"},
	ErrScoreFetchFailed:     {ErrScoreFetchFailed, http.StatusBadGateway, "Could not fetch page for scoring"},

	ErrRunNotFound:     {ErrRunNotFound, http.StatusNotFound, "Pipeline run not found"},
	ErrExportFormat:    {ErrExportFormat, http.StatusBadRequest, "Unsupported export format"},
	ErrRunStoreFailure: {ErrRunStoreFailure, http.StatusInternalServerError, "Run history storage failed"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
