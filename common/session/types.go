package session

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// requestArgs are the per-request options recognized inside an argument
// tree. Every other key is rejected at decode time.
type requestArgs struct {
	Params          map[string]any    `mapstructure:"params"`
	Headers         map[string]string `mapstructure:"headers"`
	Cookies         map[string]string `mapstructure:"cookies"`
	Data            any               `mapstructure:"data"`
	JSON            any               `mapstructure:"json"`
	Timeout         any               `mapstructure:"timeout"`
	FollowRedirects *bool             `mapstructure:"follow_redirects"`
}

func decodeArgs(args map[string]any) (*requestArgs, error) {
	var spec requestArgs
	if len(args) == 0 {
		return &spec, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &spec,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(args); err != nil {
		return nil, errors.Wrap(err, "invalid request arguments")
	}
	return &spec, nil
}

// appendParams adds query parameters to a URL textually: the path part is
// never touched, only a query string is appended with ? or &.
func appendParams(target string, params map[string]any) string {
	if len(params) == 0 {
		return target
	}
	values := url.Values{}
	for key, value := range params {
		values.Set(key, fmt.Sprintf("%v", value))
	}
	separator := "?"
	if strings.Contains(target, "?") {
		separator = "&"
	}
	return target + separator + values.Encode()
}

func buildBody(spec *requestArgs) ([]byte, string, error) {
	if spec.JSON != nil && spec.Data != nil {
		return nil, "", errors.New("request arguments carry both data and json")
	}
	if spec.JSON != nil {
		encoded, err := json.Marshal(spec.JSON)
		if err != nil {
			return nil, "", errors.Wrap(err, "could not encode json body")
		}
		return encoded, "application/json", nil
	}
	switch data := spec.Data.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(data), "", nil
	case []byte:
		return data, "", nil
	case map[string]any:
		values := url.Values{}
		for key, value := range data {
			values.Set(key, fmt.Sprintf("%v", value))
		}
		return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
	default:
		return nil, "", errors.Errorf("unsupported data type: %T", spec.Data)
	}
}

// timeoutValue resolves the effective timeout of a request: the per-request
// value when given (a duration, a duration string, or a number of seconds),
// the session default otherwise.
func timeoutValue(value any, fallback time.Duration) (time.Duration, error) {
	switch timeout := value.(type) {
	case nil:
		return fallback, nil
	case time.Duration:
		return timeout, nil
	case int:
		return time.Duration(timeout) * time.Second, nil
	case int64:
		return time.Duration(timeout) * time.Second, nil
	case float64:
		return time.Duration(timeout * float64(time.Second)), nil
	case string:
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return 0, errors.Wrap(err, "could not parse timeout")
		}
		return parsed, nil
	default:
		return 0, errors.Errorf("unsupported timeout type: %T", value)
	}
}
