package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidQuantity, "quantity must be positive")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidQuantity, err.Code)
	suite.Equal("quantity must be positive", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeUserNotFound, "no account for uid %s", "user-1")
	suite.NotNil(err)
	suite.Equal(ErrCodeUserNotFound, err.Code)
	suite.Equal("no account for uid user-1", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "failed to read account", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal("failed to read account", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodePriceUnavailable, cause, "no quote for symbol: %s", "005930")
	suite.NotNil(err)
	suite.Equal(ErrCodePriceUnavailable, err.Code)
	suite.Equal("no quote for symbol: 005930", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidQuantity, "quantity must be positive")
	suite.Equal("[100] quantity must be positive", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeUserNotFound, "account missing", cause)
	suite.Equal("[200] account missing: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInsufficientFunds, "not enough cash or credit")
	suite.Equal(ErrCodeInsufficientFunds, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	inner := New(ErrCodeConcurrentModification, "write conflict")
	outer := fmt.Errorf("executing buy: %w", inner)
	suite.Equal(ErrCodeConcurrentModification, GetCode(outer))
}

func (suite *ErrorTestSuite) TestGetCodeUnknown() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain error")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInsufficientCredit, "credit line exhausted")
	suite.True(HasCode(err, ErrCodeInsufficientCredit))
	suite.False(HasCode(err, ErrCodeInsufficientFunds))
}

func (suite *ErrorTestSuite) TestIsRetryable() {
	suite.True(ErrCodeConcurrentModification.IsRetryable())
	suite.True(ErrCodePriceUnavailable.IsRetryable())
	suite.False(ErrCodeInsufficientFunds.IsRetryable())
	suite.False(ErrCodeUserNotFound.IsRetryable())
}
