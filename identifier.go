package joysky

import "regexp"

// IdentifierKind is the shape classification of a login identifier. It
// selects which single indexed directory lookup serves the request.
type IdentifierKind uint8

const (
	// KindUsername is the fall-through classification.
	KindUsername IdentifierKind = iota
	// KindPhone matches an 11-digit CN mobile number.
	KindPhone
	// KindEmail matches an address-shaped string.
	KindEmail
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// ClassifyIdentifier classifies a pre-trimmed identifier. Email shape wins
// over phone shape; anything unrecognized is a username. The function is
// pure: same input, same classification, no errors.
func ClassifyIdentifier(identifier string) IdentifierKind {
	switch {
	case emailPattern.MatchString(identifier):
		return KindEmail
	case phonePattern.MatchString(identifier):
		return KindPhone
	default:
		return KindUsername
	}
}

// directoryField maps a classification onto the directory index it selects.
func directoryField(kind IdentifierKind) Field {
	switch kind {
	case KindEmail:
		return FieldEmail
	case KindPhone:
		return FieldPhone
	default:
		return FieldUsername
	}
}
