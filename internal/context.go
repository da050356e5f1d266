package internal

import "context"

type ctxKey string

const ContextEmployeeKey ctxKey = "employeeID"

// EmployeeIDFromContext returns the acting employee id, or 0 when absent.
func EmployeeIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if id, ok := ctx.Value(ContextEmployeeKey).(int64); ok {
		return id
	}
	return 0
}

func ContextWithEmployeeID(ctx context.Context, employeeID int64) context.Context {
	return context.WithValue(ctx, ContextEmployeeKey, employeeID)
}
