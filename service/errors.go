package service

// ErrorList is an ErrorSink collecting messages in order
type ErrorList []string

// AddError appends message to the list
func (l *ErrorList) AddError(message string) {
	*l = append(*l, message)
}
