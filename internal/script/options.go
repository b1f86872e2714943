package script

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	optionStringTypeErrorTemplateConstant       = "option %s must be a string, got %T"
	optionBoolTypeErrorTemplateConstant         = "option %s must be a boolean, got %T"
	optionIntegerTypeErrorTemplateConstant      = "option %s must be an integer, got %T"
	optionDurationTypeErrorTemplateConstant     = "option %s must be a duration string or seconds, got %T"
	optionDurationParseErrorTemplateConstant    = "option %s holds an invalid duration %q: %w"
	optionStringListTypeErrorTemplateConstant   = "option %s must be a list of strings, got %T"
	optionStringListEntryTemplateConstant       = "option %s entry %d must be a string, got %T"
	optionStringMapTypeErrorTemplateConstant    = "option %s must be a map of strings, got %T"
	optionStringMapValueErrorTemplateConstant   = "option %s value for key %s must be a scalar, got %T"
	optionStringMapNonStringKeyTemplateConstant = "option %s holds a non-string key %v"
)

// optionReader extracts typed values from a step's declarative options.
type optionReader struct {
	options map[string]any
}

func newOptionReader(options map[string]any) optionReader {
	return optionReader{options: options}
}

func (reader optionReader) stringValue(optionKey string) (string, bool, error) {
	rawValue, exists := reader.options[optionKey]
	if !exists || rawValue == nil {
		return "", false, nil
	}
	stringValue, isString := rawValue.(string)
	if !isString {
		return "", false, fmt.Errorf(optionStringTypeErrorTemplateConstant, optionKey, rawValue)
	}
	return strings.TrimSpace(stringValue), true, nil
}

func (reader optionReader) boolValue(optionKey string) (bool, bool, error) {
	rawValue, exists := reader.options[optionKey]
	if !exists || rawValue == nil {
		return false, false, nil
	}
	boolValue, isBool := rawValue.(bool)
	if !isBool {
		return false, false, fmt.Errorf(optionBoolTypeErrorTemplateConstant, optionKey, rawValue)
	}
	return boolValue, true, nil
}

func (reader optionReader) intValue(optionKey string) (int, bool, error) {
	rawValue, exists := reader.options[optionKey]
	if !exists || rawValue == nil {
		return 0, false, nil
	}
	switch typedValue := rawValue.(type) {
	case int:
		return typedValue, true, nil
	case int64:
		return int(typedValue), true, nil
	case uint64:
		return int(typedValue), true, nil
	default:
		return 0, false, fmt.Errorf(optionIntegerTypeErrorTemplateConstant, optionKey, rawValue)
	}
}

// durationValue accepts Go duration strings ("250ms", "5s") and bare numbers
// interpreted as seconds.
func (reader optionReader) durationValue(optionKey string) (time.Duration, bool, error) {
	rawValue, exists := reader.options[optionKey]
	if !exists || rawValue == nil {
		return 0, false, nil
	}
	switch typedValue := rawValue.(type) {
	case string:
		parsedDuration, parseError := time.ParseDuration(strings.TrimSpace(typedValue))
		if parseError != nil {
			return 0, false, fmt.Errorf(optionDurationParseErrorTemplateConstant, optionKey, typedValue, parseError)
		}
		return parsedDuration, true, nil
	case int:
		return time.Duration(typedValue) * time.Second, true, nil
	case int64:
		return time.Duration(typedValue) * time.Second, true, nil
	case float64:
		return time.Duration(typedValue * float64(time.Second)), true, nil
	default:
		return 0, false, fmt.Errorf(optionDurationTypeErrorTemplateConstant, optionKey, rawValue)
	}
}

func (reader optionReader) stringSliceValue(optionKey string) ([]string, bool, error) {
	rawValue, exists := reader.options[optionKey]
	if !exists || rawValue == nil {
		return nil, false, nil
	}
	switch typedValue := rawValue.(type) {
	case []string:
		duplicated := make([]string, len(typedValue))
		copy(duplicated, typedValue)
		return duplicated, true, nil
	case []any:
		entries := make([]string, 0, len(typedValue))
		for entryIndex, rawEntry := range typedValue {
			entryString, isString := rawEntry.(string)
			if !isString {
				return nil, false, fmt.Errorf(optionStringListEntryTemplateConstant, optionKey, entryIndex, rawEntry)
			}
			entries = append(entries, entryString)
		}
		return entries, true, nil
	default:
		return nil, false, fmt.Errorf(optionStringListTypeErrorTemplateConstant, optionKey, rawValue)
	}
}

func (reader optionReader) stringMapValue(optionKey string) (map[string]string, bool, error) {
	rawValue, exists := reader.options[optionKey]
	if !exists || rawValue == nil {
		return nil, false, nil
	}
	switch typedValue := rawValue.(type) {
	case map[string]string:
		duplicated := make(map[string]string, len(typedValue))
		for entryKey, entryValue := range typedValue {
			duplicated[entryKey] = entryValue
		}
		return duplicated, true, nil
	case map[string]any:
		entries := make(map[string]string, len(typedValue))
		for entryKey, rawEntryValue := range typedValue {
			renderedValue, renderError := renderScalar(optionKey, entryKey, rawEntryValue)
			if renderError != nil {
				return nil, false, renderError
			}
			entries[entryKey] = renderedValue
		}
		return entries, true, nil
	case map[any]any:
		entries := make(map[string]string, len(typedValue))
		for rawEntryKey, rawEntryValue := range typedValue {
			entryKey, keyIsString := rawEntryKey.(string)
			if !keyIsString {
				return nil, false, fmt.Errorf(optionStringMapNonStringKeyTemplateConstant, optionKey, rawEntryKey)
			}
			renderedValue, renderError := renderScalar(optionKey, entryKey, rawEntryValue)
			if renderError != nil {
				return nil, false, renderError
			}
			entries[entryKey] = renderedValue
		}
		return entries, true, nil
	default:
		return nil, false, fmt.Errorf(optionStringMapTypeErrorTemplateConstant, optionKey, rawValue)
	}
}

func renderScalar(optionKey string, entryKey string, rawValue any) (string, error) {
	switch typedValue := rawValue.(type) {
	case string:
		return typedValue, nil
	case bool:
		return strconv.FormatBool(typedValue), nil
	case int:
		return strconv.Itoa(typedValue), nil
	case int64:
		return strconv.FormatInt(typedValue, 10), nil
	case float64:
		return strconv.FormatFloat(typedValue, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf(optionStringMapValueErrorTemplateConstant, optionKey, entryKey, rawValue)
	}
}
