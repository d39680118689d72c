package middleware

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/storefront/gateway/internal/interfaces/http/dto"
)

var (
	// gidPattern matches Shopify global IDs, e.g. gid://shopify/Cart/abc123.
	gidPattern = regexp.MustCompile(`^gid://shopify/[A-Za-z]+/[^/]+`)

	// countryCodePattern matches two-letter ISO country codes.
	countryCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// SetupValidator registers the gateway's custom binding rules: error
// messages keyed by JSON field names, plus shopify_gid and country_code
// tags for the ID and region fields that appear throughout the API.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("shopify_gid", matchPattern(gidPattern))
	_ = v.RegisterValidation("country_code", matchPattern(countryCodePattern))
}

// jsonFieldName names a struct field the way API clients see it, falling
// back to the form tag for query bindings.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	return name
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// HandleValidationError aborts the request with a 422 carrying per-field
// details for each failed rule.
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, FormatValidationErrors(err, RequestIDFrom(c)))
}

// FormatValidationErrors converts a binding error into the gateway's
// validation envelope. Non-validator errors produce an envelope without
// field details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			details = append(details, dto.ValidationDetail{
				Field:   fe.Field(),
				Message: ruleMessage(fe),
			})
		}
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// fixedRuleMessages covers the rules whose message needs no parameter.
var fixedRuleMessages = map[string]string{
	"required":     "This field is required",
	"email":        "Invalid email format",
	"url":          "Invalid URL format",
	"shopify_gid":  "Must be a Shopify global ID (gid://shopify/...)",
	"country_code": "Must be a two-letter country code",
}

// ruleMessage renders a failed rule for API clients.
func ruleMessage(fe validator.FieldError) string {
	if msg, ok := fixedRuleMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min":
		return boundMessage("Must be at least ", fe)
	case "max":
		return boundMessage("Must be at most ", fe)
	case "len":
		return "Must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "gte":
		return "Must be greater than or equal to " + fe.Param()
	case "lte":
		return "Must be less than or equal to " + fe.Param()
	default:
		return "Invalid value"
	}
}

// boundMessage phrases min/max so string rules read as lengths.
func boundMessage(prefix string, fe validator.FieldError) string {
	if fe.Type().Kind() == reflect.String {
		return prefix + fe.Param() + " characters"
	}
	return prefix + fe.Param()
}
