package model

import (
	"fmt"
	"strings"

	"github.com/fyerfyer/issue-report-splitter/internal/issue"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TagFilenamePattern 文件名模板校验标签
const TagFilenamePattern = "filename_pattern"

// RegisterValidators 向gin的校验引擎注册自定义规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation(TagFilenamePattern, validateFilenamePattern)
}

func validateFilenamePattern(fl validator.FieldLevel) bool {
	_, err := issue.ParsePattern(fl.Field().String())
	return err == nil
}

// ValidationMessage 把校验错误转换成可读的信息
func ValidationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case TagFilenamePattern:
			msgs = append(msgs, fmt.Sprintf("%s: invalid filename pattern", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s]", fe.Field(), fe.Param()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
