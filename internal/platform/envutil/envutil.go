package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

// Every reader logs when it falls back to the default so a misconfigured deploy is visible
// in the boot log. A nil logger silences that.

func String(name, def string, log *logger.Logger) string {
	v, ok := lookup(name)
	if !ok {
		usingDefault(log, name, def)
		return def
	}
	return v
}

func Int(name string, def int, log *logger.Logger) int {
	v, ok := lookup(name)
	if !ok {
		usingDefault(log, name, def)
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		invalid(log, name, v, def)
		return def
	}
	return i
}

func Bool(name string, def bool, log *logger.Logger) bool {
	v, ok := lookup(name)
	if !ok {
		usingDefault(log, name, def)
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	invalid(log, name, v, def)
	return def
}

// Duration accepts Go duration strings ("15s") or a bare number of seconds.
func Duration(name string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(name)
	if !ok {
		usingDefault(log, name, def.String())
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	invalid(log, name, v, def.String())
	return def
}

func lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}

func usingDefault(log *logger.Logger, name string, def any) {
	if log == nil {
		return
	}
	log.Debug("Environment variable not found, using default", "key", name, "default", def)
}

func invalid(log *logger.Logger, name, raw string, def any) {
	if log == nil {
		return
	}
	log.Warn("Environment variable invalid, using default", "key", name, "value", raw, "default", def)
}
