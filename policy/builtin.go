package policy

import (
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strings"

	paywall "github.com/lnpaywall/go-paywall"
)

// URLAndMethod digests the HTTP method, host and path. Query parameters and
// body are ignored, so one payment covers every variant of the resource.
type URLAndMethod struct{}

func (URLAndMethod) SignificantRequestData(r *paywall.CachableRequest) (paywall.RequestData, error) {
	return digest(methodURLFields(r)...), nil
}

// URLMethodAndParameters digests the method, host, path and every query and
// form parameter. Parameter names are sorted, and values within a name keep
// their submitted order, so re-ordered parameters still match.
type URLMethodAndParameters struct{}

func (URLMethodAndParameters) SignificantRequestData(r *paywall.CachableRequest) (paywall.RequestData, error) {
	fields, err := parameterFields(r)
	if err != nil {
		return paywall.RequestData{}, err
	}
	return digest(append(methodURLFields(r), fields...)...), nil
}

// WithBody digests everything URLMethodAndParameters does plus the raw
// request body. The body is cached so downstream handlers can still read it.
type WithBody struct{}

func (WithBody) SignificantRequestData(r *paywall.CachableRequest) (paywall.RequestData, error) {
	fields, err := parameterFields(r)
	if err != nil {
		return paywall.RequestData{}, err
	}
	body, err := r.CachedBody()
	if err != nil {
		return paywall.RequestData{}, fmt.Errorf("policy: failed to read request body: %w", err)
	}
	fields = append(append(methodURLFields(r), fields...), body)
	return digest(fields...), nil
}

func methodURLFields(r *paywall.CachableRequest) [][]byte {
	return [][]byte{
		[]byte(r.Method),
		[]byte(r.Host),
		[]byte(r.URL.EscapedPath()),
	}
}

// parameterFields flattens query and form parameters into sorted name/value
// byte fields. Form parameters are parsed from the cached body so the stream
// survives for the resource handler.
func parameterFields(r *paywall.CachableRequest) ([][]byte, error) {
	values := r.URL.Query()
	if isFormContentType(r.Header.Get("Content-Type")) {
		body, err := r.CachedBody()
		if err != nil {
			return nil, fmt.Errorf("policy: failed to read form body: %w", err)
		}
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("policy: failed to parse form body: %w", err)
		}
		for name, vals := range form {
			values[name] = append(values[name], vals...)
		}
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	var fields [][]byte
	for _, name := range names {
		fields = append(fields, []byte(name))
		for _, val := range values[name] {
			fields = append(fields, []byte(val))
		}
	}
	return fields, nil
}

func isFormContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.HasPrefix(ct, "application/x-www-form-urlencoded")
	}
	return mediaType == "application/x-www-form-urlencoded"
}
