package configsvc

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"netweave/internal/models"
)

// Variable data types accepted on template declarations.
const (
	TString = "string"
	TInt    = "int"
	TBool   = "bool"
	TIPv4   = "ipv4"
	TList   = "list" // comma-separated
)

func validDataType(t string) bool {
	switch t {
	case "", TString, TInt, TBool, TIPv4, TList:
		return true
	}
	return false
}

// validateValue normalizes one supplied value against its declaration:
// data type first, then validationRegex, then options membership.
func validateValue(def models.TemplateVariable, value string) (string, error) {
	v := strings.TrimSpace(value)

	switch def.DataType {
	case "", TString:
		// as-is
	case TInt:
		if _, err := strconv.Atoi(v); err != nil {
			return "", fmt.Errorf("%s: not an integer", def.Name)
		}
	case TBool:
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			v = "1"
		case "0", "false", "no", "off":
			v = "0"
		default:
			return "", fmt.Errorf("%s: not a boolean", def.Name)
		}
	case TIPv4:
		ip := net.ParseIP(v)
		if ip == nil || ip.To4() == nil {
			return "", fmt.Errorf("%s: not an IPv4 address", def.Name)
		}
		v = ip.To4().String()
	case TList:
		parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' })
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return "", fmt.Errorf("%s: empty list", def.Name)
		}
		v = strings.Join(out, ",")
	default:
		return "", fmt.Errorf("%s: unknown data type %q", def.Name, def.DataType)
	}

	if def.ValidationRegex != "" {
		re, err := regexp.Compile(def.ValidationRegex)
		if err != nil {
			return "", fmt.Errorf("%s: broken validation regex", def.Name)
		}
		if !re.MatchString(v) {
			return "", fmt.Errorf("%s: value does not match %s", def.Name, def.ValidationRegex)
		}
	}

	if len(def.Options) > 0 {
		ok := false
		for _, o := range def.Options {
			if v == o {
				ok = true
				break
			}
		}
		if !ok {
			return "", fmt.Errorf("%s: value not in options %v", def.Name, []string(def.Options))
		}
	}

	return v, nil
}
