package failure

import (
	"github.com/tidwall/gjson"
)

// ParseVendorError extracts the upstream error object from a response body.
// Both {"error":{"code":..}} and top-level {"code":..} shapes are accepted.
// Returns nil when the body carries no code, type or message.
func ParseVendorError(body []byte) *VendorError {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil
	}

	root := gjson.ParseBytes(body)
	obj := root
	if nested := root.Get("error"); nested.IsObject() {
		obj = nested
	}

	v := &VendorError{
		Code:    obj.Get("code").String(),
		Type:    obj.Get("type").String(),
		Message: obj.Get("message").String(),
		Raw:     obj.Raw,
	}

	// {"error": "some text"}
	if v.Message == "" {
		if e := root.Get("error"); e.Type == gjson.String {
			v.Message = e.String()
		}
	}

	if v.Code == "" && v.Type == "" && v.Message == "" {
		return nil
	}
	return v
}
