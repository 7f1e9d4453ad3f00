package domain

// Result is the response envelope handed to API clients: a success flag,
// a human-readable message and an optional payload.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    *T     `json:"data,omitempty"`
}

func Ok[T any](data T, msg string) Result[T] {
	return Result[T]{Success: true, Message: msg, Data: &data}
}

func OkMessage(msg string) Result[struct{}] {
	return Result[struct{}]{Success: true, Message: msg}
}

// Fail converts an error into a failed Result. Unknown errors keep a generic
// message so internals never leak to clients.
func Fail(err error) Result[struct{}] {
	kind := KindOf(err)
	if kind == "" {
		return Result[struct{}]{Message: "internal error"}
	}
	return Result[struct{}]{Message: MessageOf(err), Kind: string(kind)}
}
