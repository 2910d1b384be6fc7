package rpc

import "fmt"

// Status is a rippled-compatible error status returned to clients.
type Status struct {
	Code    string
	Message string
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// Common statuses.
func InvalidParams(message string) *Status {
	return &Status{Code: "invalidParams", Message: message}
}

func MalformedAccount(field string) *Status {
	return &Status{Code: "actMalformed", Message: fmt.Sprintf("%s malformed", field)}
}

func UnknownCommand() *Status {
	return &Status{Code: "unknownCmd", Message: "Unknown method."}
}

func InternalError() *Status {
	return &Status{Code: "internal", Message: "Internal error."}
}

// NoPermission rejects admin-only fields with a fixed message.
func NoPermission(message string) *Status {
	return &Status{Code: "noPermission", Message: message}
}
