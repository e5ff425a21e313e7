package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SignupForm は POST /signup のフォームです。
// max は文字数、maxbytes は UTF-8 のバイト数で数えます（bcrypt は 72 バイトまで）。
type SignupForm struct {
	Name     string `form:"name" binding:"required,max=20"`
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required,min=6,max=30,maxbytes=72"`
}

// LoginForm は POST /login のフォームです。
type LoginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

// ValidationError は入力検証エラーです。Message はそのまま画面に表示できます。
type ValidationError struct {
	Message string
	err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// NewValidationError は binding/validator のエラーを最初の一件のメッセージに変換します。
func NewValidationError(err error) *ValidationError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &ValidationError{Message: validationMessage(err), err: err}
}

func init() {
	// gin の ShouldBind もこの検証器を使うため、パッケージ読み込み時に登録する
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
			panic(err)
		}
	}
}

// maxBytes は文字列のバイト長が上限以下かを判定します。
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

func validateForm(form any) error {
	if err := binding.Validator.ValidateStruct(form); err != nil {
		return NewValidationError(err)
	}
	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Your submission could not be read."
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "Name":
		if fe.Tag() == "max" {
			return fmt.Sprintf("Name must be at most %s characters.", fe.Param())
		}
		return "Name is required."
	case "Email":
		return "Please enter a valid email address."
	case "Password":
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("Password must be at least %s characters.", fe.Param())
		case "max":
			return fmt.Sprintf("Password must be at most %s characters.", fe.Param())
		case "maxbytes":
			return fmt.Sprintf("Password must be at most %s bytes.", fe.Param())
		}
		return "Password is required."
	}
	return fmt.Sprintf("%s is invalid.", fe.Field())
}
