package backoffice

import (
	"strconv"
	"time"

	"github.com/denismitr/imgslot/internal/manipulator"
	"github.com/pkg/errors"
)

type policyRequest struct {
	Mode   string  `json:"mode"`
	Preset string  `json:"preset"`
	Factor float64 `json:"factor"`
}

func (r policyRequest) toPolicy() manipulator.Policy {
	return manipulator.Policy{
		Mode:   manipulator.ParseMode(r.Mode),
		Preset: manipulator.Tier(r.Preset),
		Factor: r.Factor,
	}
}

// dataURIRequest carries a pasted image in its data URI form.
type dataURIRequest struct {
	Name    string `json:"name"`
	DataURI string `json:"dataUri"`
}

func intFromQueryStringOrDefault(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Errorf("%s is not a valid non negative integer", v)
	}

	return n, nil
}

func strconvMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixNano()/int64(time.Millisecond), 10)
}
