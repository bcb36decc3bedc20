package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("add: %w", &FieldError{Field: "email", Err: ErrRequiredFieldMissing})

	assert.ErrorIs(t, err, ErrRequiredFieldMissing)
	var fe *FieldError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Field)
	assert.Contains(t, err.Error(), `field "email"`)
}

func TestSyntaxErrorUnwrapsKindAndCause(t *testing.T) {
	cause := &SyntaxError{Kind: ErrFilterStringFormat, Input: "age >=* 18", Token: ">=*", Pos: 4}
	err := &SyntaxError{Kind: ErrQueryStringFormat, Input: "users.age >=* 18", Token: ">=*", Pos: 10, Cause: cause}

	assert.ErrorIs(t, err, ErrQueryStringFormat)
	assert.ErrorIs(t, err, ErrFilterStringFormat)
	assert.NotErrorIs(t, cause, ErrQueryStringFormat)
	assert.Equal(t, `malformed filter string at position 4 near ">=*"`, cause.Error())
}

func TestTableErrorMessage(t *testing.T) {
	assert.Equal(t, `unknown table: "orders"`, (&TableError{Table: "orders", Err: ErrUnknownTable}).Error())
	assert.ErrorIs(t, &TableError{Err: ErrUnknownTable}, ErrUnknownTable)
}
