package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// badKey names a value that has no usable key.
const badKey = "!BADKEY"

// toFields turns the arguments of the logging methods into zap fields. They
// are read as key-value pairs, except that a zap.Field or an error standing
// in a key position is taken as a complete field on its own.
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			continue
		case error:
			fields = append(fields, zap.Error(v))
			continue
		}

		if i == len(args)-1 {
			fields = append(fields, zap.Any(badKey, args[i]))
			break
		}

		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%s(%v)", badKey, args[i])
		}
		fields = append(fields, field(key, args[i+1]))
		i++
	}
	return fields
}

// field keeps durations and timestamps typed and renders other Stringers, such
// as connectivity states, as text.
func field(key string, val any) zap.Field {
	switch v := val.(type) {
	case time.Duration:
		return zap.Duration(key, v)
	case time.Time:
		return zap.Time(key, v)
	case error:
		return zap.NamedError(key, v)
	case fmt.Stringer:
		return zap.Stringer(key, v)
	}
	return zap.Any(key, val)
}
