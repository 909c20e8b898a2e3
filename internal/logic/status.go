package logic

// LoadingState is the loading flag a manager exposes to views.
type LoadingState struct {
	IsLoading bool
	Message   string
}

// ErrorState is the error surface a manager exposes to views. Raw network
// errors never reach a view; Message is already user-presentable.
type ErrorState struct {
	HasError bool
	Message  string
}
