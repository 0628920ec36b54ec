package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"zkvault/internal/core/domain"
	"zkvault/pkg/numfmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("account", validateAccount)
		_ = v.RegisterValidation("handle", validateHandle)
		_ = v.RegisterValidation("hexbytes", validateHexBytes)
		_ = v.RegisterValidation("uint64_str", validateUint64String)
	}
}

// IsSafeID allows alphanumeric, underscore, dash and dot, up to 100 characters.
func IsSafeID(s string) bool {
	return len(s) <= 100 && safeStringRe.MatchString(s)
}

func validateAccount(fl validator.FieldLevel) bool {
	return common.IsHexAddress(strings.TrimSpace(fl.Field().String()))
}

func validateHandle(fl validator.FieldLevel) bool {
	_, err := domain.ParseHandle(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

// validateHexBytes accepts 0x-prefixed, even-length hex.
func validateHexBytes(fl validator.FieldLevel) bool {
	_, err := hexutil.Decode(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

func validateUint64String(fl validator.FieldLevel) bool {
	_, err := numfmt.ParseUint64(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
