package ratelimit

const operationSubjectSeparatorConstant = " "

// Operation names a retried call. Kind is drawn from a fixed set and labels metrics; Subject identifies
// the item or page and only reaches logs and errors.
type Operation struct {
	Kind    string
	Subject string
}

// NewOperation builds an operation of the kind acting on the subject.
func NewOperation(kind string, subject string) Operation {
	return Operation{Kind: kind, Subject: subject}
}

// String joins kind and subject.
func (operation Operation) String() string {
	if len(operation.Subject) == 0 {
		return operation.Kind
	}
	return operation.Kind + operationSubjectSeparatorConstant + operation.Subject
}
